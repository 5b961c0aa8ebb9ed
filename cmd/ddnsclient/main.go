package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	ddns "github.com/Travis-Britz/ddnsclient"
	"github.com/Travis-Britz/ddnsclient/internal/config"
	"github.com/Travis-Britz/ddnsclient/internal/logger"
	"github.com/Travis-Britz/ddnsclient/internal/metrics"
)

var CLI struct {
	Config       string   `short:"c" help:"Configuration file path (default: search ., ~/.config/ddnsclient, /etc/ddnsclient)"`
	EnvFile      string   `help:"Environment file to load before reading configuration" default:".env"`
	Domain       string   `short:"d" help:"DNS entry to update"`
	TTL          int      `help:"TTL of the DNS record in seconds"`
	Key          string   `short:"k" help:"API key or token (prefer DDNS_API_KEY)"`
	KeyFile      string   `help:"Path to a credentials file"`
	Provider     string   `help:"Update backend: http or cloudflare"`
	Endpoint     string   `help:"Update endpoint URL for the http backend"`
	IPv6         bool     `name:"ipv6" help:"Also resolve and update the IPv6 address"`
	IPv4Provider []string `name:"ipv4-provider" help:"IPv4 detection service URL; the first one is preferred"`
	IPv6Provider []string `name:"ipv6-provider" help:"IPv6 detection service URL; the first one is preferred"`
	StateDir     string   `help:"Directory holding the last applied addresses"`
	Verbose      bool     `short:"v" help:"Enable verbose logging"`
	LogFile      string   `help:"Also write JSON logs to this rotating file"`
	MetricsAddr  string   `help:"Serve Prometheus metrics on this address (daemon only)"`

	Update struct {
		Force     bool   `short:"f" help:"Send the update even when the address is unchanged"`
		IP        string `help:"IPv4 address to set instead of detecting it"`
		Interface string `short:"i" help:"Use the address of this network interface instead of a web service"`
	} `cmd:"" default:"1" help:"Detect the current address and update the DNS record once"`

	Daemon struct {
		Interval  time.Duration `help:"Duration to wait between IP checks"`
		Interface string        `short:"i" help:"Use the address of this network interface instead of a web service"`
	} `cmd:"" help:"Keep the DNS record updated until interrupted"`
}

func main() {
	// missing .env files are fine; the variables may come from the real environment
	_ = godotenv.Load(envFileFromArgs(os.Args[1:]))

	kctx := kong.Parse(&CLI,
		kong.Name("ddnsclient"),
		kong.Description("Keep a DNS record pointed at this machine's public IP address."),
	)
	if err := run(kctx.Command()); err != nil {
		fmt.Fprintf(os.Stderr, "ddnsclient: %s\n", err)
		os.Exit(1)
	}
}

func run(command string) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	applyFlags(cfg, command)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	daemon := command == "daemon"
	cred, err := ddns.CredentialChain{
		Explicit:  CLI.Key,
		Persisted: cfg.APIKey,
		File:      cfg.KeyFile,
		// the daemon must never block on a prompt
		Interactive: !daemon,
	}.Resolve()
	if err != nil {
		return err
	}
	log.Debug("using credential", zap.Stringer("credential", cred))

	reg := prom.NewRegistry()
	client, err := newClient(cfg, cred, log, metrics.NewPrometheusRecorder(reg), !daemon && CLI.Update.Force)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !daemon {
		res, err := client.RunOnce(ctx)
		if err != nil {
			return err
		}
		if res.Outcome == nil {
			log.Info("DNS record already up to date", zap.String("domain", cfg.Domain))
		}
		return nil
	}

	if cfg.Metrics.Address != "" {
		srv := &http.Server{Addr: cfg.Metrics.Address, Handler: metrics.HTTPHandler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}
	return ddns.RunDaemon(ctx, client, cfg.Daemon.Interval, log)
}

// applyFlags overrides file and environment configuration with explicit flags.
func applyFlags(cfg *config.Config, command string) {
	if CLI.Domain != "" {
		cfg.Domain = CLI.Domain
	}
	if CLI.TTL != 0 {
		cfg.TTL = CLI.TTL
	}
	if CLI.KeyFile != "" {
		cfg.KeyFile = CLI.KeyFile
	}
	if cfg.KeyFile == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			cfg.KeyFile = filepath.Join(dir, config.AppName, "credentials")
		}
	}
	if CLI.Provider != "" {
		cfg.Provider = CLI.Provider
	}
	if CLI.Endpoint != "" {
		cfg.Endpoint = CLI.Endpoint
	}
	if CLI.IPv6 {
		cfg.IPv6.Enabled = true
	}
	if len(CLI.IPv4Provider) > 0 {
		cfg.IPv4.Providers = CLI.IPv4Provider
		cfg.IPv4.Preferred = CLI.IPv4Provider[0]
	}
	if len(CLI.IPv6Provider) > 0 {
		cfg.IPv6.Providers = CLI.IPv6Provider
		cfg.IPv6.Preferred = CLI.IPv6Provider[0]
	}
	if CLI.StateDir != "" {
		cfg.StateDir = CLI.StateDir
	}
	if CLI.Verbose {
		cfg.Log.Level = "debug"
	}
	if CLI.LogFile != "" {
		cfg.Log.File = CLI.LogFile
	}
	if CLI.MetricsAddr != "" {
		cfg.Metrics.Address = CLI.MetricsAddr
	}
	switch command {
	case "update":
		if CLI.Update.Interface != "" {
			cfg.IPv4.Interface = CLI.Update.Interface
			cfg.IPv6.Interface = CLI.Update.Interface
		}
	case "daemon":
		if CLI.Daemon.Interval != 0 {
			cfg.Daemon.Interval = CLI.Daemon.Interval
		}
		if CLI.Daemon.Interface != "" {
			cfg.IPv4.Interface = CLI.Daemon.Interface
			cfg.IPv6.Interface = CLI.Daemon.Interface
		}
	}
}

func newClient(cfg *config.Config, cred ddns.Credential, log *zap.Logger, rec ddns.Recorder, force bool) (*ddns.Client, error) {
	stateDir := cfg.StateDir
	if stateDir == "" {
		dir, err := ddns.DefaultStateDir()
		if err != nil {
			return nil, err
		}
		stateDir = dir
	}

	opts := []ddns.ClientOption{
		ddns.UsingStateStore(ddns.NewFileStore(stateDir, log)),
		ddns.WithLogger(log),
		ddns.WithRecorder(rec),
	}

	switch {
	case CLI.Update.IP != "":
		r, err := ddns.Static(CLI.Update.IP, "")
		if err != nil {
			return nil, err
		}
		opts = append(opts, ddns.UsingResolver(r))
	case cfg.IPv4.Interface != "":
		opts = append(opts, ddns.UsingResolver(ddns.InterfaceResolver(cfg.IPv4.Interface)))
	default:
		opts = append(opts, ddns.UsingWebResolver(nilIfEmpty(cfg.IPv4.Providers), nilIfEmpty(cfg.IPv6.Providers), cfg.IPv4.Preferred, cfg.IPv6.Preferred))
	}

	switch cfg.Provider {
	case config.ProviderCloudflare:
		opts = append(opts, ddns.UsingCloudflare())
	default:
		opts = append(opts, ddns.UsingHTTPEndpoint(cfg.Endpoint))
	}

	client, err := ddns.New(ddns.Config{
		Domain:     cfg.Domain,
		TTL:        cfg.TTL,
		IPv6:       cfg.IPv6.Enabled,
		Force:      force,
		Credential: cred,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating ddns client: %w", err)
	}
	return client, nil
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

// envFileFromArgs finds --env-file before kong runs, so the file is loaded before configuration is read.
func envFileFromArgs(args []string) string {
	for i, a := range args {
		switch {
		case a == "--env-file" && i+1 < len(args):
			return args[i+1]
		case len(a) > len("--env-file=") && a[:len("--env-file=")] == "--env-file=":
			return a[len("--env-file="):]
		}
	}
	return ".env"
}
