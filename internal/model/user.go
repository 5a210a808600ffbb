// Package model defines domain entities for the application.
package model

import "time"

// User is a diary owner. Users are created out of band (registration or the
// admin CLI); the API only ever reads their id.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}
