package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/esimctl/internal/config"
	"github.com/dusk-indust/esimctl/internal/esim"
	"github.com/dusk-indust/esimctl/internal/metrics"
	"github.com/dusk-indust/esimctl/internal/service"
	"github.com/dusk-indust/esimctl/internal/status"
	"github.com/dusk-indust/esimctl/internal/telephony"
)

// app carries what the subcommands share once the root has set up.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configDir string
	hostFlag  string
	verbose   bool

	cfg       *config.Config
	logger    *slog.Logger
	host      telephony.Host
	collector *metrics.Collector
	svc       *service.Service
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "esimctl",
		Short:         "Discover and switch embedded SIM profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", ".", "directory holding esimctl.yml and .env")
	root.PersistentFlags().StringVar(&a.hostFlag, "host", "", "host to drive: sim:<fixture.yml> or a JSON-RPC URL (overrides config; defaults to the repository's development fixture "+config.DefaultHost+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "print activation progress and debug logs")

	root.AddCommand(
		listCmd(a),
		activeCmd(a),
		switchCmd(a),
		serveHostCmd(a),
		serveMCPCmd(a),
		versionCmd(a),
	)
	return root
}

// setup loads configuration and opens the host.
func (a *app) setup() error {
	if err := config.LoadEnvFile(filepath.Join(a.configDir, ".env")); err != nil {
		return err
	}
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.Getenv)
	if a.hostFlag != "" {
		cfg.Host = a.hostFlag
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	a.cfg = cfg

	a.logger, err = cfg.NewLogger(a.stderr)
	if err != nil {
		return err
	}

	a.host, err = openHost(cfg.HostSpec())
	if err != nil {
		if cfg.Host == "" {
			return fmt.Errorf("no host configured and the development fixture %s is not reachable from here; set --host, %s or host in esimctl.yml: %w",
				config.DefaultHost, config.EnvHost, err)
		}
		return err
	}

	a.collector = metrics.NewCollector("")
	engine := append(cfg.EngineOptions(), esim.WithRecorder(a.collector))
	if a.verbose {
		engine = append(engine, esim.WithEventHandler(status.EventWriter(a.stderr)))
	}
	a.svc = service.New(a.host,
		service.WithLogger(a.logger),
		service.WithSwitchRecorder(a.collector),
		service.WithEngineOptions(engine...),
	)

	a.logger.Debug("configured", "host", cfg.HostSpec(), "config_dir", a.configDir)
	return nil
}

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the esimctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(a.stdout, version)
			return err
		},
	}
}
