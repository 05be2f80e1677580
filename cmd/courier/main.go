package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/courier/internal/cliconfig"
	"github.com/bft-labs/courier/internal/httpapi"
	"github.com/bft-labs/courier/pkg/courier"
	"github.com/bft-labs/courier/pkg/log"
	"github.com/bft-labs/courier/plugins/configwatcher"
)

const helpDescription = `
Keep captain and customer devices working through flaky connectivity.

courier caches domain snapshots with an expiry, queues mutations made while
offline, and replays them in order once the service is reachable again.

Highlights:
  - Bounded, persisted queue with a fixed retry budget per operation.
  - File, Redis or in-memory storage; HTTP or NSQ delivery.
  - Configure via file, env (COURIER_*), or flags; tunables hot-reload.
`

var exampleUsage = strings.TrimSpace(`
  courier run --service-url https://api.example.com --auth-key <key>
  courier run --storage redis --redis-addr 127.0.0.1:6379 --transport nsq
  courier status
  courier enqueue status_update '{"order":"o-7","status":"delivered"}'
  courier cancel 1700000000000-3f2a9c1b7d4e
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "courier",
		Short:         "Durable offline cache and operation queue",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.courier/config.toml)")
	root.PersistentFlags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address of the daemon status API")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(&cfg, &cfgPath),
		newStatusCmd(&cfg, &cfgPath),
		newQueueCmd(&cfg, &cfgPath),
		newEnqueueCmd(&cfg, &cfgPath),
		newSyncCmd(&cfg, &cfgPath),
		newSweepCmd(&cfg, &cfgPath),
		newCancelCmd(&cfg, &cfgPath),
		newOnlineCmd(&cfg, &cfgPath),
	)

	if err := root.Execute(); err != nil {
		logger := cliconfig.Logger(cfg.LogLevel)
		logger.Error().Err(err).Msg("courier")
		os.Exit(1)
	}
}

// loadConfig applies the config file and COURIER_* environment on top of
// cfg, leaving flags the user set untouched. Returns the changed-flag set.
func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) (map[string]bool, string, error) {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return nil, "", fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return nil, "", err
		}
	} else {
		cfgFile = ""
	}

	// Environment overrides file config but not explicit flags.
	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return nil, "", err
	}
	return changed, cfgFile, nil
}

func newRunCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the courier daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, cfgFile, err := loadConfig(cmd, cfg, *cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runDaemon(*cfg, changed, cfgFile)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Storage, "storage", cfg.Storage, "storage backend: file, redis or memory")
	f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for file storage (default: $HOME/.courier/state)")
	f.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address for redis storage")
	f.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "redis password")
	f.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "redis database number")
	f.StringVar(&cfg.RedisNamespace, "redis-namespace", cfg.RedisNamespace, "key prefix for redis storage (default: courier)")

	f.StringVar(&cfg.Transport, "transport", cfg.Transport, "delivery transport: http or nsq")
	f.StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, "base URL operations are POSTed to")
	f.StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "bearer token for the service")
	f.StringVar(&cfg.ProbeURL, "probe-url", cfg.ProbeURL, "reachability probe URL (default: <service-url>/health)")
	f.StringVar(&cfg.NSQAddr, "nsq-addr", cfg.NSQAddr, "nsqd TCP address for nsq transport")
	f.StringVar(&cfg.NSQTopicPrefix, "nsq-topic-prefix", cfg.NSQTopicPrefix, "topic prefix for nsq transport (default: courier.)")
	f.StringSliceVar(&cfg.ExtraKinds, "extra-kinds", cfg.ExtraKinds, "operation kinds accepted in addition to the built-in set")

	f.BoolVar(&cfg.EnableOfflineMode, "offline-mode", cfg.EnableOfflineMode, "cache and queue while offline")
	f.BoolVar(&cfg.EnableAutoSync, "auto-sync", cfg.EnableAutoSync, "sync periodically and on reconnect")
	f.IntVar(&cfg.MaxQueueSize, "max-queue-size", cfg.MaxQueueSize, "queue capacity")
	f.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "dispatch attempts per operation")
	f.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "periodic sync interval")
	f.DurationVar(&cfg.MaxCacheAge, "max-cache-age", cfg.MaxCacheAge, "expiry of cache entries and queued operations")
	f.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "reachability poll interval")
	f.DurationVar(&cfg.SettleDelay, "settle-delay", cfg.SettleDelay, "delay between reconnect and sync")
	f.DurationVar(&cfg.DispatchTimeout, "dispatch-timeout", cfg.DispatchTimeout, "timeout of one dispatch")
	f.DurationVar(&cfg.CleanupInterval, "cleanup-interval", cfg.CleanupInterval, "expiry sweep interval")

	return cmd
}

func runDaemon(cfg cliconfig.Config, changed map[string]bool, cfgFile string) error {
	zl := cliconfig.Logger(cfg.LogLevel)
	logger := log.NewZerologAdapterWithLogger(zl)

	// Log configuration (masking secrets)
	logCfg := cfg
	if logCfg.AuthKey != "" {
		logCfg.AuthKey = "*****"
	}
	if logCfg.RedisPassword != "" {
		logCfg.RedisPassword = "*****"
	}
	zl.Info().Interface("config", logCfg).Msg("configuration")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, closeStorage, err := buildStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	execOpts, closeExec, err := buildExecutors(cfg, logger)
	if err != nil {
		return err
	}
	defer closeExec()

	opts := append([]courier.Option{
		courier.WithStorage(storage),
		courier.WithLogger(logger),
	}, execOpts...)
	if probe := buildProbe(cfg); probe != nil {
		opts = append(opts, courier.WithProbe(probe))
	}
	if cfgFile != "" {
		opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{
			Path:    cfgFile,
			Changed: changed,
		}))
	}

	c, err := courier.New(cfg.CourierConfig(), opts...)
	if err != nil {
		return fmt.Errorf("create courier: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start courier: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		_ = c.Stop()
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}
	srv := &http.Server{
		Handler:           httpapi.NewServer(c, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Serve(ln) }()
	zl.Info().Str("addr", ln.Addr().String()).Msg("status API listening")

	select {
	case <-sigCh:
		zl.Info().Msg("received signal, stopping...")
	case err := <-srvErr:
		if !errors.Is(err, http.ErrServerClosed) {
			zl.Error().Err(err).Msg("status API failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn().Err(err).Msg("status API shutdown")
	}

	if err := c.Stop(); err != nil {
		return fmt.Errorf("stop courier: %w", err)
	}
	return nil
}
