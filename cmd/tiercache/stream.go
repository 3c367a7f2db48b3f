package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/metrics"
	"github.com/unkn0wn-root/tiercache/stream"
)

func newStreamCmd(a *app) *cobra.Command {
	var history string
	cmd := &cobra.Command{
		Use:   "stream <message>...",
		Short: "Send a message to the streaming endpoint and print the reply as it arrives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, closeCache, err := a.openCache(ctx)
			if err != nil {
				return err
			}
			defer closeCache()
			dl := a.devlog(cc)

			var turns []stream.Message
			if history != "" {
				prev, ok, err := tiercache.DiskAs[[]stream.Message](ctx, cc, history)
				switch {
				case err != nil:
					dl.Warn("history unreadable; starting fresh", tiercache.Fields{"key": history, "err": err})
				case ok:
					turns = prev
				}
			}
			turns = append(turns, stream.Message{Role: stream.RoleUser, Message: strings.Join(args, " ")})

			printed := 0
			c, err := a.consumer(dl, func(s stream.Snapshot) {
				if len(s.Text) > printed {
					fmt.Fprint(a.out, s.Text[printed:])
					printed = len(s.Text)
				}
			})
			if err != nil {
				return err
			}

			res := c.Fetch(ctx, stream.NewPayload(turns...))
			fmt.Fprintln(a.out)
			if !res.Successful {
				dl.Error("stream failed", tiercache.Fields{"status": res.Status, "err": res.Error, "partial": len(res.Data)})
				return errors.New(res.Error)
			}

			if history != "" {
				turns = append(turns, stream.Message{Role: stream.RoleAssistant, Message: res.Data})
				if err := cc.Set(ctx, history, turns, tiercache.Disk); err != nil {
					return fmt.Errorf("save history: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&history, "history", "", "disk key holding the conversation; read before and appended after")
	return cmd
}

func newServeSimCmd(a *app) *cobra.Command {
	var (
		addr     string
		delay    time.Duration
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve-sim",
		Short: "Serve a simulated streaming endpoint at /stream/",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mux := http.NewServeMux()
			mux.Handle("/stream/", stream.SimulatedHandler(stream.SimulatedOptions{
				Delay:    delay,
				Interval: interval,
				Logger:   a.log,
			}))
			if a.reg != nil {
				mux.Handle("/metrics", metrics.HandlerFor(a.reg))
			}

			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			a.log.Info("serving simulated stream", tiercache.Fields{"addr": addr, "metrics": a.reg != nil})

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	cmd.Flags().DurationVar(&delay, "delay", time.Second, "wait before the first byte")
	cmd.Flags().DurationVar(&interval, "interval", 20*time.Millisecond, "wait between characters")
	return cmd
}
