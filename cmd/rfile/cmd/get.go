package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"

	"github.com/aweris/rfile"
)

var getCmd = &cobra.Command{
	Use:   "get <key> [dest]",
	Short: "Download an object",
	Long:  "Download an object to dest, or to the key's base name in the current directory.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runGet,
}

var infoCmd = &cobra.Command{
	Use:   "info <key>",
	Short: "Show size, type and dimensions of an object",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var urlCmd = &cobra.Command{
	Use:   "url <key>",
	Short: "Print a time-limited link to an object",
	Args:  cobra.ExactArgs(1),
	RunE:  runURL,
}

func init() {
	urlCmd.Flags().Duration("ttl", 0, "link lifetime (default: url_ttl from config)")
	urlCmd.Flags().StringToString("option", nil, "extra signing options, e.g. response-content-disposition=inline")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(urlCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	dest := path.Base(key)
	if len(args) == 2 {
		dest = args[1]
	}

	return withObject(cmd, key, func(ctx context.Context, obj *rfile.Object) error {
		f, err := obj.Open(ctx)
		if err != nil {
			return err
		}
		defer f.Close()

		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, f); err != nil {
			out.Close()
			return fmt.Errorf("write %s: %w", dest, err)
		}
		if err := out.Close(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), dest)
		return nil
	})
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withObject(cmd, args[0], func(ctx context.Context, obj *rfile.Object) error {
		size, err := obj.Size(ctx)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "key:     %s\n", obj.Key())
		fmt.Fprintf(w, "bucket:  %s\n", obj.Bucket())
		fmt.Fprintf(w, "size:    %d\n", size)

		info, err := obj.Dimensions(ctx)
		switch {
		case errors.Is(err, rfile.ErrUnsupportedFormat):
			fmt.Fprintln(w, "image:   no")
			return nil
		case err != nil:
			return err
		}
		fmt.Fprintf(w, "type:    %s\n", info.MIME)
		fmt.Fprintf(w, "image:   %dx%d\n", info.Width, info.Height)
		return nil
	})
}

func runURL(cmd *cobra.Command, args []string) error {
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		ttl = cfg.URLTTL
	}
	options, _ := cmd.Flags().GetStringToString("option")

	return withObject(cmd, args[0], func(ctx context.Context, obj *rfile.Object) error {
		link, err := obj.URL(ctx, options, ttl)
		if err != nil {
			return err
		}
		log.Debug().Str("key", obj.Key()).Str("ttl", ttl.Round(time.Second).String()).Msg("signed link")
		fmt.Fprintln(cmd.OutOrStdout(), link)
		return nil
	})
}
