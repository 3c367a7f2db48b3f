package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, &app{out: os.Stdout}, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// execute runs one command line. The logger is flushed whether or not the
// command succeeds; cobra skips post-run hooks after an error.
func execute(ctx context.Context, a *app, args []string) error {
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "tiercache",
		Short:         "Tiered client cache and streaming chat consumer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "tiercache.yaml", "path to config file (missing file => defaults)")

	root.AddCommand(
		newGetCmd(a),
		newSetCmd(a),
		newClearCmd(a),
		newCookieCmd(a),
		newStreamCmd(a),
		newServeSimCmd(a),
	)
	return root
}
