package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/svcbench/internal/config"
	"github.com/svcbench/internal/echoserver"
	"github.com/svcbench/internal/logging"
	"github.com/svcbench/internal/tui"
)

var (
	echoAddr     string
	echoLogLevel string
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Run a local target server for probing",
	Long: `Run a local HTTP server to point probes at. It accepts HTTP/1.1 and
cleartext HTTP/2 with prior knowledge on the same port.

Endpoints:
  GET /health          Health check
  GET /status/{code}   Reply with the given status code
  GET /redirect/{n}    Chain of n redirects ending at /health
  GET /cookie          Set a session cookie, report the one received
  ANY /api/echo        Echo the request
  GET /api/stats       Request counters

Example:
  svcbench echo --addr :8080`,
	RunE: runEcho,
}

func init() {
	echoCmd.Flags().StringVarP(&echoAddr, "addr", "a", ":8080", "Listen address")
	echoCmd.Flags().StringVar(&echoLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(echoCmd)
}

func runEcho(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(config.Log{Level: echoLogLevel, Development: true})
	if err != nil {
		return err
	}
	defer logger.Sync()

	srv := echoserver.New(echoAddr, logger)
	addr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", tui.MiniLogo(), tui.Label("echo", "http://"+addr.String()))
	fmt.Fprintln(out, tui.DimStyle.Render("  Press Ctrl+C to stop"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Fprintln(out, "\nShutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
