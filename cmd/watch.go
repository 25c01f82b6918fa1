package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/config"
	"github.com/MMOSHII/Face-Attendance-System/internal/pipeline"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run only the live camera loop",
	Long: `Poll the configured camera (LIVE_SNAPSHOT_URL or LIVE_SPOOL_DIR) and record
attendance for recognized faces until interrupted.

Examples:
  # Watch a spool directory filled by a camera daemon
  LIVE_SPOOL_DIR=/var/spool/camera face-attendance watch

  # Restrict the window for this session
  face-attendance watch --start 07:00 --end 07:45 --interval 200ms`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("start", "", "Window start HH:MM (default from ATTENDANCE_START)")
	watchCmd.Flags().String("end", "", "Window end HH:MM (default from ATTENDANCE_END)")
	watchCmd.Flags().Duration("interval", 0, "Poll interval (default from LIVE_INTERVAL)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if start := mustGetString(cmd, "start"); start != "" {
		cfg.Attendance.Start = start
	}
	if end := mustGetString(cmd, "end"); end != "" {
		cfg.Attendance.End = end
	}
	if interval := mustGetDuration(cmd, "interval"); interval > 0 {
		cfg.Live.Interval = interval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	poller, err := rt.newPoller()
	if err != nil {
		return err
	}
	if poller == nil {
		return errors.New("no camera configured: set LIVE_SNAPSHOT_URL or LIVE_SPOOL_DIR")
	}

	events := rt.pipeline.Events().AddListener()
	defer rt.pipeline.Events().RemoveListener(events)

	poller.Start(ctx)
	fmt.Printf("Watching for faces, window %s. Press Ctrl+C to stop\n", poller.Window())

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping...")
			poller.Stop()
			return nil
		case ev := <-events:
			printEvent(ev)
		}
	}
}

func printEvent(ev pipeline.Event) {
	if ev.Type == "error" {
		fmt.Printf("[%s] error: %s\n", ev.Source, ev.Error)
		return
	}
	res := ev.Result
	if res == nil || res.Identity == nil {
		return
	}
	switch res.Outcome {
	case pipeline.OutcomeAccepted:
		fmt.Printf("%s  %-8s %s (%s) present, total %d\n", attendance.FormatTimestamp(res.Timestamp),
			res.Identity.ID, res.Identity.Name, res.Identity.Class, res.Identity.TotalAttendance)
	case pipeline.OutcomeRejected:
		fmt.Printf("%s  %-8s %s skipped: %s\n", attendance.FormatTimestamp(res.Timestamp),
			res.Identity.ID, res.Identity.Name, res.Reason)
	}
}
