package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/rfile"
)

var copyCmd = &cobra.Command{
	Use:   "copy <key>",
	Short: "Copy an object to a new key",
	Long:  "Copy an object server-side to a new key in the same directory, or below --prefix. The new key is printed.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCopy,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete an object",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	copyCmd.Flags().String("prefix", "", "directory to place the copy under")

	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runCopy(cmd *cobra.Command, args []string) error {
	prefix, _ := cmd.Flags().GetString("prefix")

	return withObject(cmd, args[0], func(ctx context.Context, obj *rfile.Object) error {
		newKey, err := obj.CopyTo(ctx, prefix)
		if err != nil {
			return err
		}
		log.Info().Str("from", args[0]).Str("to", newKey).Msg("copied")
		fmt.Fprintln(cmd.OutOrStdout(), newKey)
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withObject(cmd, args[0], func(ctx context.Context, obj *rfile.Object) error {
		if err := obj.Delete(ctx); err != nil {
			return err
		}
		log.Info().Str("key", args[0]).Msg("deleted")
		return nil
	})
}
