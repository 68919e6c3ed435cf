package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/svcbench/internal/config"
	"github.com/svcbench/internal/health"
	"github.com/svcbench/internal/logging"
	"github.com/svcbench/internal/tui"
	"github.com/svcbench/pkg/protocol"
)

type probeOptions struct {
	configPath  string
	url         string
	tunnel      string
	ignoreCert  bool
	noReuse     bool
	cookies     bool
	verbose     bool
	http2Only   bool
	count       int
	rate        float64
	timeout     time.Duration
	metricsAddr string
	logLevel    string
}

func newProbeCmd() *cobra.Command {
	opts := &probeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Send requests to an HTTP endpoint through one client",
		Long: `Build one HTTP client from the adapter settings and send GET requests
to the target one after another, printing the status and byte count of each.

Examples:
  svcbench probe --url http://localhost:8080/health
  svcbench probe --url https://api.local --http2-only --count 10 --rate 2
  svcbench probe --config svcbench.yaml --no-reuse`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runProbe(ctx, cmd.OutOrStdout(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	f.StringVarP(&opts.url, "url", "u", "", "Target URL")
	f.StringVar(&opts.tunnel, "tunnel", "", "Proxy URL (http, https, socks5, socks5h)")
	f.BoolVar(&opts.ignoreCert, "ignore-cert", false, "Skip TLS certificate verification")
	f.BoolVar(&opts.noReuse, "no-reuse", false, "Open a new connection for every request")
	f.BoolVar(&opts.cookies, "cookies", false, "Keep cookies between requests")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log connection diagnostics")
	f.BoolVar(&opts.http2Only, "http2-only", false, "Speak HTTP/2 with prior knowledge")
	f.IntVarP(&opts.count, "count", "n", 1, "Number of requests to send")
	f.Float64VarP(&opts.rate, "rate", "r", 0, "Requests per second (0 = as fast as possible)")
	f.DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout (0 = none)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	return cmd
}

func init() {
	rootCmd.AddCommand(newProbeCmd())
}

// resolve loads the config file when given and lets explicitly set flags
// override it. Without a file every adapter key comes from the flags.
func (o *probeOptions) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg.Adapter = config.FromHTTPConfig(protocol.HTTPConfig{ConnReuse: true})
	}

	flags := cmd.Flags()
	a := &cfg.Adapter

	if flags.Changed("url") {
		a.URL = o.url
	}
	if flags.Changed("tunnel") {
		tunnel := o.tunnel
		a.Tunnel = &tunnel
	}

	setBool := func(name string, dst **bool, v bool) {
		if flags.Changed(name) {
			*dst = &v
		}
	}
	setBool("ignore-cert", &a.IgnoreCert, o.ignoreCert)
	setBool("no-reuse", &a.ConnReuse, !o.noReuse)
	setBool("cookies", &a.StoreCookies, o.cookies)
	setBool("verbose", &a.Verbose, o.verbose)
	setBool("http2-only", &a.HTTP2Only, o.http2Only)

	if flags.Changed("count") {
		cfg.Probe.Count = o.count
	}
	if flags.Changed("rate") {
		cfg.Probe.Rate = o.rate
	}
	if flags.Changed("timeout") {
		cfg.Probe.Timeout = o.timeout
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = o.metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	} else if a.Verbose != nil && *a.Verbose {
		cfg.Log.Level = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func runProbe(ctx context.Context, out io.Writer, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts := []protocol.Option{protocol.WithLogger(logger)}

	var metrics *health.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = health.NewMetrics(reg)
		opts = append(opts, protocol.WithConnObserver(metrics))

		srv := health.NewServer(cfg.Metrics, reg, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	adapter, err := protocol.NewHTTPAdapter(cfg.Adapter.HTTPConfig(), opts...)
	if err != nil {
		return err
	}

	p := &prober{
		adapter: adapter,
		probe:   cfg.Probe,
		metrics: metrics,
		logger:  logger,
	}
	return p.run(ctx, out, cfg.Adapter.URL)
}

// prober sends requests sequentially through one client.
type prober struct {
	adapter protocol.Adapter[*http.Client]
	probe   config.Probe
	metrics *health.Metrics
	logger  *zap.Logger
}

func (p *prober) run(ctx context.Context, out io.Writer, target string) error {
	client, err := p.adapter.BuildClient()
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	fmt.Fprintf(out, "%s %s %s\n", tui.MiniLogo(), tui.ArrowRight, tui.Label("target", target))

	var limiter *rate.Limiter
	if p.probe.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.probe.Rate), 1)
	}

	failed := 0
	for i := 1; i <= p.probe.Count; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		stats, elapsed, err := p.send(ctx, client)
		if p.metrics != nil {
			p.metrics.RecordRequest(stats, err, elapsed)
		}

		seq := tui.DimStyle.Render(fmt.Sprintf("#%d", i))
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s %s %s\n", seq,
				tui.ErrorStyle.Render(tui.CrossMark+" error"),
				tui.DimStyle.Render(err.Error()))
			continue
		}

		fmt.Fprintf(out, "%s %s %s %s\n", seq,
			tui.StatusStyle(stats.Status).Render(tui.CheckMark+" "+stats.Status),
			tui.Label("bytes", strconv.FormatInt(stats.BytesProcessed, 10)),
			tui.Label("time", elapsed.Round(time.Microsecond).String()))
	}

	p.logger.Debug("probe finished",
		zap.Int("count", p.probe.Count),
		zap.Int("failed", failed))

	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, p.probe.Count)
	}
	return nil
}

func (p *prober) send(ctx context.Context, client *http.Client) (*protocol.RequestStats, time.Duration, error) {
	if p.probe.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.probe.Timeout)
		defer cancel()
	}

	start := time.Now()
	stats, err := p.adapter.SendRequest(ctx, client)
	return stats, time.Since(start), err
}
