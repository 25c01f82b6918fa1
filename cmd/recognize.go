package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/config"
	"github.com/MMOSHII/Face-Attendance-System/internal/constants"
	"github.com/MMOSHII/Face-Attendance-System/internal/pipeline"
	"github.com/MMOSHII/Face-Attendance-System/internal/recognition"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Recognize the face in one image",
	Long: `Run one image through the recognizer and print the best match.
With --record the attendance gate runs too and an accepted event is stored.

Examples:
  face-attendance recognize photo.jpg
  face-attendance recognize --record --json frame.png`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Bool("record", false, "Record attendance for an accepted match")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	record := mustGetBool(cmd, "record")
	jsonOutput := mustGetBool(cmd, "json")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	sample, err := recognition.NewSample(data, constants.MaxImageSize)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rt, err := newRuntime(ctx, config.Load())
	if err != nil {
		return err
	}
	defer rt.Close()

	if !record {
		match, ident, err := rt.pipeline.Match(ctx, sample)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"match": match, "identity": ident})
		}
		if ident == nil {
			fmt.Printf("No match (best distance %.2f, threshold %.2f)\n", match.Distance, rt.cfg.Recognition.MatchThreshold)
			return nil
		}
		fmt.Printf("Match: %s %s (%s), distance %.2f\n", ident.ID, ident.Name, ident.Class, match.Distance)
		return nil
	}

	res, err := rt.pipeline.ProcessDetection(ctx, sample, rt.window, "cli")
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	switch res.Outcome {
	case pipeline.OutcomeNoMatch:
		fmt.Printf("No match (best distance %.2f)\n", res.Match.Distance)
	case pipeline.OutcomeRejected:
		fmt.Printf("%s %s recognized, not recorded: %s\n", res.Identity.ID, res.Identity.Name, res.Reason)
	case pipeline.OutcomeAccepted:
		fmt.Printf("%s %s recorded present at %s (total %d)\n", res.Identity.ID, res.Identity.Name,
			attendance.FormatTimestamp(res.Timestamp), res.Identity.TotalAttendance)
		if res.Snapshot != "" {
			fmt.Printf("Snapshot saved to %s\n", res.Snapshot)
		}
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
