package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aweris/rfile"
)

type sizeOp func(o *rfile.Object, ctx context.Context, w, h int) error

func init() {
	for _, c := range []struct {
		use, short string
		op         sizeOp
	}{
		{"resize", "Stretch an image to exactly WxH", (*rfile.Object).ResizeExact},
		{"fit", "Shrink an image to fit within WxH, keeping its ratio", (*rfile.Object).FitWithin},
		{"scale", "Scale an image into WxH, padding with bars", (*rfile.Object).ScaleWithBars},
		{"fill", "Crop an image to the W:H ratio and resample to WxH", (*rfile.Object).CropToAspect},
	} {
		rootCmd.AddCommand(newSizeCmd(c.use, c.short, c.op))
	}

	cropCmd.Flags().Int("top", 0, "top edge of the region")
	cropCmd.Flags().Int("left", 0, "left edge of the region")
	cropCmd.Flags().Int("width", 0, "region width")
	cropCmd.Flags().Int("height", 0, "region height")
	cropCmd.Flags().Bool("same-location", false, "keep the key instead of moving the result to a new one")
	cropCmd.MarkFlagRequired("width")
	cropCmd.MarkFlagRequired("height")
	rootCmd.AddCommand(cropCmd)
}

func newSizeCmd(use, short string, op sizeOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <key> <WxH>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, h, err := parseSize(args[1])
			if err != nil {
				return err
			}
			return withObject(cmd, args[0], func(ctx context.Context, obj *rfile.Object) error {
				if err := op(obj, ctx, w, h); err != nil {
					return err
				}
				log.Info().Str("key", obj.Key()).Str("op", use).Int("width", w).Int("height", h).Msg("transformed")
				fmt.Fprintln(cmd.OutOrStdout(), obj.Key())
				return nil
			})
		},
	}
}

var cropCmd = &cobra.Command{
	Use:   "crop <key>",
	Short: "Cut a rectangle out of an image without scaling",
	Long:  "Cut a rectangle out of an image. Unless --same-location is set the old key is deleted and the result gets a new one, which is printed.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCrop,
}

func runCrop(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	top, _ := flags.GetInt("top")
	left, _ := flags.GetInt("left")
	width, _ := flags.GetInt("width")
	height, _ := flags.GetInt("height")
	same, _ := flags.GetBool("same-location")

	return withObject(cmd, args[0], func(ctx context.Context, obj *rfile.Object) error {
		if err := obj.CropExact(ctx, top, left, width, height, same); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), obj.Key())
		return nil
	})
}

// parseSize reads "WxH".
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q: expected WxH", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: bad width: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: bad height: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q: %w", s, rfile.ErrInvalidSize)
	}
	return w, h, nil
}
