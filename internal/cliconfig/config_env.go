package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (COURIER_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("state-dir", os.Getenv("COURIER_STATE_DIR"), &cfg.StateDir)
	s.setString("storage", os.Getenv("COURIER_STORAGE"), &cfg.Storage)
	s.setString("redis-addr", os.Getenv("COURIER_REDIS_ADDR"), &cfg.RedisAddr)
	s.setString("redis-password", os.Getenv("COURIER_REDIS_PASSWORD"), &cfg.RedisPassword)
	s.setString("redis-namespace", os.Getenv("COURIER_REDIS_NAMESPACE"), &cfg.RedisNamespace)
	s.setString("transport", os.Getenv("COURIER_TRANSPORT"), &cfg.Transport)
	s.setString("service-url", os.Getenv("COURIER_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("auth-key", os.Getenv("COURIER_AUTH_KEY"), &cfg.AuthKey)
	s.setString("probe-url", os.Getenv("COURIER_PROBE_URL"), &cfg.ProbeURL)
	s.setString("nsq-addr", os.Getenv("COURIER_NSQ_ADDR"), &cfg.NSQAddr)
	s.setString("nsq-topic-prefix", os.Getenv("COURIER_NSQ_TOPIC_PREFIX"), &cfg.NSQTopicPrefix)
	s.setString("listen", os.Getenv("COURIER_LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("log-level", os.Getenv("COURIER_LOG_LEVEL"), &cfg.LogLevel)
	s.setListFromString("extra-kinds", os.Getenv("COURIER_EXTRA_KINDS"), &cfg.ExtraKinds)

	if err := s.setIntFromString("redis-db", os.Getenv("COURIER_REDIS_DB"), &cfg.RedisDB); err != nil {
		return err
	}
	if err := s.setIntFromString("max-queue-size", os.Getenv("COURIER_MAX_QUEUE_SIZE"), &cfg.MaxQueueSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-attempts", os.Getenv("COURIER_MAX_ATTEMPTS"), &cfg.MaxAttempts); err != nil {
		return err
	}

	s.setBoolFromString("offline-mode", os.Getenv("COURIER_ENABLE_OFFLINE_MODE"), &cfg.EnableOfflineMode)
	s.setBoolFromString("auto-sync", os.Getenv("COURIER_ENABLE_AUTO_SYNC"), &cfg.EnableAutoSync)

	if err := s.setDuration("sync-interval", os.Getenv("COURIER_SYNC_INTERVAL"), &cfg.SyncInterval); err != nil {
		return err
	}
	if err := s.setDuration("max-cache-age", os.Getenv("COURIER_MAX_CACHE_AGE"), &cfg.MaxCacheAge); err != nil {
		return err
	}
	if err := s.setDuration("poll-interval", os.Getenv("COURIER_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("settle-delay", os.Getenv("COURIER_SETTLE_DELAY"), &cfg.SettleDelay); err != nil {
		return err
	}
	if err := s.setDuration("dispatch-timeout", os.Getenv("COURIER_DISPATCH_TIMEOUT"), &cfg.DispatchTimeout); err != nil {
		return err
	}
	if err := s.setDuration("cleanup-interval", os.Getenv("COURIER_CLEANUP_INTERVAL"), &cfg.CleanupInterval); err != nil {
		return err
	}

	return nil
}
