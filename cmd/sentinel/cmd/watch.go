package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moyger/sentinel/internal/watcher"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the memory directory and reindex on change",
		Long: `Watch the memory directory for changes and keep the index current.
Rapid edits to the same file are debounced into a single reindex.
Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			// Catch up on changes made while not watching.
			res, err := a.coord.ReindexAll(ctx, false)
			if err != nil {
				return err
			}
			if res.Indexed > 0 {
				a.out.Successf("caught up: %d files reindexed", res.Indexed)
			}
			a.saveVectors()

			w, err := watcher.New(watcher.Options{
				DebounceWindow:  a.cfg.DebounceDuration(),
				EventBufferSize: a.cfg.Watch.EventBufferSize,
				Matches:         a.coord.Matches,
			})
			if err != nil {
				return err
			}
			defer func() { _ = w.Stop() }()

			watchErr := make(chan error, 1)
			go func() {
				watchErr <- w.Start(ctx, a.cfg.Paths.MemoryDir)
			}()

			a.out.Successf("watching %s", a.cfg.Paths.MemoryDir)

			for {
				select {
				case <-ctx.Done():
					a.out.Newline()
					a.out.Dim("stopping")
					return nil
				case err := <-watchErr:
					return err
				case err := <-w.Errors():
					a.out.Warningf("watch: %v", err)
				case batch := <-w.Events():
					a.dispatch(ctx, batch)
				}
			}
		},
	}
}

// dispatch applies one debounced batch of file events to the index.
func (a *app) dispatch(ctx context.Context, batch []watcher.FileEvent) {
	changed := false
	for _, ev := range batch {
		switch ev.Operation {
		case watcher.OpDelete:
			if err := a.coord.RemoveFile(ctx, ev.Path); err != nil {
				a.out.Errorf("%s: %v", ev.Path, err)
				continue
			}
			a.out.Successf("removed %s", ev.Path)
			changed = true
		default:
			n, err := a.coord.IndexFile(ctx, ev.Path)
			if err != nil {
				a.out.Errorf("%s: %v", ev.Path, err)
				continue
			}
			if n > 0 {
				a.out.Successf("indexed %s (%d chunks)", ev.Path, n)
				changed = true
			}
		}
	}
	if changed {
		a.saveVectors()
	}
}
