package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/op/go-logging"
	"github.com/spf13/cobra"

	"github.com/jward/perlnav"
	"github.com/jward/perlnav/internal/watch"
	"github.com/jward/perlnav/internal/workspace"
)

var log = logging.MustGetLogger("perlnav.cli")

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a workspace and keep the index current as files change",
	Long:  "Indexes the workspace, then applies filesystem changes in debounced batches and prints what each batch did. Stops on SIGINT or SIGTERM.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openIndexedEngine(ctx, findRepoRoot(targetDir))
	if err != nil {
		return outputError(cmd, "watch", err)
	}
	w, err := watch.New(engine.Classifier(), engine.Config().Watch.Debounce)
	if err != nil {
		return outputError(cmd, "watch", err)
	}
	defer w.Close()

	log.Infof("watching %s", engine.Root())
	err = w.Run(ctx, func(events []workspace.ChangeEvent) {
		applyChanges(ctx, cmd, engine, events)
	})
	if err != nil && !errors.Is(err, watch.ErrClosed) {
		return outputError(cmd, "watch", err)
	}
	return nil
}

// applyChanges feeds one batch to the engine and reports the result.
// Failures are logged so the watch keeps running.
func applyChanges(ctx context.Context, cmd *cobra.Command, engine *perlnav.Engine, events []workspace.ChangeEvent) {
	res, err := engine.NotifyChanges(ctx, events)
	if err != nil {
		log.Warningf("applying %d change(s): %s", len(events), err)
		return
	}
	if err := outputResult(cmd, CLIResult{
		Command: "watch",
		Results: CLIChanges{Events: len(events), Pruned: res.Pruned, Indexed: res.Indexed},
	}); err != nil {
		log.Warningf("writing result: %s", err)
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
