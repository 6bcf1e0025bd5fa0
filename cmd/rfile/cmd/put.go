package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aweris/rfile"
)

var putCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Store a local file under a new key",
	Long:  "Copy a local file into the store. A free key is allocated in the current month's directory and printed.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPut,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Store the body of an HTTP URL under a new key",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().String("ext", "", "extension to give the new key (default: taken from the URL)")

	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(fetchCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	return withUpload(cmd, func(ctx context.Context, store rfile.Store, opts []rfile.Option) (*rfile.Object, error) {
		return rfile.FromFile(ctx, store, args[0], opts...)
	})
}

func runFetch(cmd *cobra.Command, args []string) error {
	ext, _ := cmd.Flags().GetString("ext")
	return withUpload(cmd, func(ctx context.Context, store rfile.Store, opts []rfile.Option) (*rfile.Object, error) {
		return rfile.FromURL(ctx, store, args[0], ext, opts...)
	})
}
