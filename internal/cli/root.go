package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "svcbench",
	Short: "HTTP protocol adapter for service benchmarking",
	Long: `svcbench drives HTTP endpoints through a configurable client:
proxy tunnels, TLS verification, connection reuse, cookie storage and
HTTP/2 prior knowledge.

Get started:
  svcbench probe --url http://localhost:8080    Send one request
  svcbench probe --config svcbench.yaml         Use a config file`,
	Version: fmt.Sprintf("%s (built %s)", version, buildTime),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceErrors = true
}

// SetVersion sets the version info
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}
