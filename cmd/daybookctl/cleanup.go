package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/daybook/daybook/internal/cleanup"
	"github.com/daybook/daybook/internal/media"
)

const defaultOrphanAge = 24 * time.Hour

type mediaLister interface {
	List(ctx context.Context) ([]media.Object, error)
	Delete(ctx context.Context, ref string) error
}

type referenceSource interface {
	ListMediaReferences(ctx context.Context, prefix string) (map[string]struct{}, error)
}

func newCleanupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Drain the media cleanup queue and find orphaned files",
	}

	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Process every due reference in the cleanup queue once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, done, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer done()

			store := media.NewLocalStore(a.cfg.UploadDir, a.cfg.UploadURLPrefix, a.cfg.MaxUploadSize)
			worker := cleanup.NewWorker(cleanup.NewQueue(a.cache.Client()), store, a.logger, nil)
			worker.SetBatchSize(a.cfg.CleanupBatchSize)
			worker.SetMaxAttempts(a.cfg.CleanupMaxAttempts)

			res, err := worker.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted=%d retried=%d dropped=%d\n", res.Deleted, res.Retried, res.Dropped)
			return nil
		},
	}

	var (
		olderThan time.Duration
		remove    bool
	)
	orphans := &cobra.Command{
		Use:   "orphans",
		Short: "List stored files no moment refers to",
		Long: "List stored files that no moment refers to. Files younger than --older-than\n" +
			"are skipped since their moment may still be in flight. Pass --delete to remove them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, done, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer done()

			store := media.NewLocalStore(a.cfg.UploadDir, a.cfg.UploadURLPrefix, a.cfg.MaxUploadSize)
			return sweepOrphans(ctx, store, a.repo, a.out, store.Prefix(), time.Now().Add(-olderThan), remove)
		},
	}
	orphans.Flags().DurationVar(&olderThan, "older-than", defaultOrphanAge, "minimum file age")
	orphans.Flags().BoolVar(&remove, "delete", false, "delete orphaned files")

	cmd.AddCommand(sweep, orphans)
	return cmd
}

// findOrphans returns objects modified before cutoff that are not in live.
func findOrphans(objects []media.Object, live map[string]struct{}, cutoff time.Time) []media.Object {
	var orphans []media.Object
	for _, obj := range objects {
		if _, ok := live[obj.Ref]; ok {
			continue
		}
		if !obj.ModTime.Before(cutoff) {
			continue
		}
		orphans = append(orphans, obj)
	}
	return orphans
}

func sweepOrphans(ctx context.Context, store mediaLister, refs referenceSource, out io.Writer, prefix string, cutoff time.Time, remove bool) error {
	// Files are listed before references so a moment created in between
	// cannot make its own file look orphaned.
	objects, err := store.List(ctx)
	if err != nil {
		return err
	}
	live, err := refs.ListMediaReferences(ctx, prefix)
	if err != nil {
		return err
	}

	orphans := findOrphans(objects, live, cutoff)
	var failed int
	for _, obj := range orphans {
		if !remove {
			fmt.Fprintf(out, "%s\t%d\t%s\n", obj.Ref, obj.Size, obj.ModTime.UTC().Format(time.RFC3339))
			continue
		}
		if err := store.Delete(ctx, obj.Ref); err != nil {
			failed++
			fmt.Fprintf(out, "failed %s: %v\n", obj.Ref, err)
			continue
		}
		fmt.Fprintf(out, "deleted %s\n", obj.Ref)
	}

	fmt.Fprintf(out, "%d orphaned of %d stored\n", len(orphans), len(objects))
	if failed > 0 {
		return fmt.Errorf("%d orphaned files could not be deleted", failed)
	}
	return nil
}
