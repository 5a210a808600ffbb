// Command daybookctl manages users, sessions and stored media for a Daybook deployment.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
