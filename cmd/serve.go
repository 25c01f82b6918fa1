package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MMOSHII/Face-Attendance-System/internal/config"
	"github.com/MMOSHII/Face-Attendance-System/internal/web"
	"github.com/MMOSHII/Face-Attendance-System/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the live camera loop",
	Long: `Start the attendance HTTP API. When LIVE_SNAPSHOT_URL or LIVE_SPOOL_DIR is
set, the live camera loop runs in the same process and shares the roster, so
the debounce applies across both.

Endpoints are served under /api/v1: predict, attendance/update,
recognize-and-update, identities, live/window, live/events and model/reload.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().Bool("no-live", false, "Do not start the live camera loop")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	var window handlers.WindowController = handlers.NewWindowState(rt.window)
	if !mustGetBool(cmd, "no-live") {
		poller, err := rt.newPoller()
		if err != nil {
			return fmt.Errorf("failed to set up live loop: %w", err)
		}
		if poller != nil {
			window = poller
			poller.Start(ctx)
			defer poller.Stop()
		} else {
			fmt.Println("No camera configured, live loop disabled")
		}
	}

	server := web.NewServer(cfg, web.Deps{
		Pipeline: rt.pipeline,
		Window:   window,
		Model:    rt.model,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Attendance window %s (%s), debounce %s\n", rt.window, rt.loc, cfg.Attendance.Debounce)
	fmt.Printf("Starting Face Attendance API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
