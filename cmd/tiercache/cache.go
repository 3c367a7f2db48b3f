package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/tiercache"
)

func printValue(a *app, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		// values that came from the memory tier may not be JSON-encodable
		_, err = fmt.Fprintf(a.out, "%v\n", v)
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

func newGetCmd(a *app) *cobra.Command {
	var tier string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Read a key (memory, then disk) or a single tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, closeCache, err := a.openCache(ctx)
			if err != nil {
				return err
			}
			defer closeCache()

			key := args[0]
			var (
				v  any
				ok bool
			)
			switch tier {
			case "", "any":
				v, ok = cc.Get(ctx, key)
			case "memory":
				v, ok = cc.GetMemory(key)
			case "disk":
				v, ok = cc.GetDisk(ctx, key)
			case "async":
				v, ok, err = cc.GetAsync(ctx, key)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown tier %q", tier)
			}
			if !ok {
				return fmt.Errorf("%s: not found", key)
			}
			return printValue(a, v)
		},
	}
	cmd.Flags().StringVar(&tier, "tier", "any", "any | memory | disk | async")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	var (
		mode    string
		raw     bool
		toAsync bool
	)
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a key; value is parsed as JSON unless --raw",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var value any = args[1]
			if !raw {
				if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
					return fmt.Errorf("value is not JSON (use --raw for text): %w", err)
				}
			}

			cc, closeCache, err := a.openCache(ctx)
			if err != nil {
				return err
			}
			defer closeCache()

			if toAsync {
				return cc.SetAsync(ctx, args[0], value)
			}
			m := a.cfg.Cache.DefaultMode
			if mode != "" {
				if m, err = tiercache.ParseStorageMode(mode); err != nil {
					return err
				}
			}
			if err := cc.Set(ctx, args[0], value, m); err != nil {
				return err
			}
			a.log.Debug("set", tiercache.Fields{"key": args[0], "mode": m.String()})
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "memory | disk | diskOnly (default from config)")
	cmd.Flags().BoolVar(&raw, "raw", false, "store the value as a plain string")
	cmd.Flags().BoolVar(&toAsync, "async", false, "write to the async tier instead")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	var prefix, exclude string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove disk keys with a prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, closeCache, err := a.openCache(ctx)
			if err != nil {
				return err
			}
			defer closeCache()

			n, err := cc.ClearDiskWithPrefix(ctx, prefix, exclude)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "removed %d keys\n", n)
			return err
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "key prefix to remove (\"\" matches every key)")
	cmd.Flags().StringVar(&exclude, "exclude", "", "keep keys containing this substring")
	return cmd
}

func newCookieCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cookie",
		Short: "Manage cookie tokens (persisted when cache.cookies.path is set)",
	}

	var days int
	setCmd := &cobra.Command{
		Use:  "set <name> <value>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, closeCache, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()
			cc.SetCookie(args[0], args[1], days)
			return nil
		},
	}
	setCmd.Flags().IntVar(&days, "days", 30, "days until expiry")

	getCmd := &cobra.Command{
		Use:  "get <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, closeCache, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()
			v, ok := cc.GetCookie(args[0])
			if !ok {
				return fmt.Errorf("%s: not found", args[0])
			}
			_, err = fmt.Fprintln(a.out, v)
			return err
		},
	}

	clearCmd := &cobra.Command{
		Use:  "clear <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, closeCache, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()
			cc.ClearCookie(args[0])
			return nil
		},
	}

	cmd.AddCommand(setCmd, getCmd, clearCmd)
	return cmd
}
