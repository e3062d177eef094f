package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"framecheck/internal/services/pipeline"
	"framecheck/internal/services/storage"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func processCommand() *cobra.Command {
	var preview bool

	cmd := &cobra.Command{
		Use:   "process VIDEO",
		Short: "Detect objects in every frame of a video and write the artifacts",
		Long: `Process decodes VIDEO frame by frame, rotates and resizes each frame, runs the
detector and writes <output>/box/frame_NNNNNN.png, <output>/labels/frame_NNNNNN.txt
and, with --save-raw, <output>/raw/frame_NNNNNN.png. The output directories are
cleared first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if !preview {
				stats, err := env.app.Process(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printStats(cmd, stats, env.cfg.OutputDirectory)
				return nil
			}

			// Serve the preview until processing ends.
			g, ctx := errgroup.WithContext(cmd.Context())
			serveCtx, stopServer := context.WithCancel(ctx)
			g.Go(func() error {
				return env.app.Serve(serveCtx)
			})
			g.Go(func() error {
				defer stopServer()
				stats, err := env.app.Process(ctx, args[0])
				if err != nil {
					return err
				}
				printStats(cmd, stats, env.cfg.OutputDirectory)
				return nil
			})
			return g.Wait()
		},
	}

	flags := cmd.Flags()
	flags.String("backend", "", "Detector backend: opencv, onnx or process (default opencv)")
	flags.String("model", "", "Model file, an ONNX export with NMS (default ./models/best.onnx)")
	flags.Int("input-size", 0, "Square model input size (default 640)")
	flags.Float64("score", 0, "Minimum detection score (default 0.25)")
	flags.String("detector-command", "", "External detector command for the process backend")
	flags.StringP("output", "o", "", "Output directory (default ./results)")
	flags.Bool("save-raw", false, "Also write the unannotated frames")
	flags.Bool("rotate", true, "Rotate frames 90 degrees clockwise before detection")
	flags.Int("width", 0, "Frame width after resizing, 0 keeps the size (default 720)")
	flags.Int("height", 0, "Frame height after resizing, 0 keeps the size (default 1080)")
	flags.Bool("continue-on-error", false, "Skip frames the detector fails on instead of stopping")
	flags.Int("port", 0, "Preview server port (default 8080)")
	flags.BoolVar(&preview, "preview", false, "Stream annotated frames to /api/view while processing")
	return cmd
}

func printStats(cmd *cobra.Command, stats pipeline.Stats, output string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Frames: %d\nDetections: %d\n", stats.Frames, stats.Detections)
	if stats.Failed > 0 {
		fmt.Fprintf(out, "Failed frames: %d\n", stats.Failed)
	}
	if len(stats.Plates) > 0 {
		fmt.Fprintln(out, "Plates:")
		for _, plate := range sortedPlates(stats.Plates) {
			fmt.Fprintf(out, "  %s (%d frame(s))\n", plate, stats.Plates[plate])
		}
	}
	fmt.Fprintf(out, "Records: %s\n", filepath.Join(output, storage.LabelsDir))
}

// sortedPlates orders plates by frame count, most frequent first.
func sortedPlates(plates map[string]int) []string {
	out := make([]string, 0, len(plates))
	for plate := range plates {
		out = append(out, plate)
	}
	sort.Slice(out, func(i, j int) bool {
		if plates[out[i]] != plates[out[j]] {
			return plates[out[i]] > plates[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
