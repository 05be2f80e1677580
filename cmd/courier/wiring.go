package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bft-labs/courier/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/courier/internal/adapters/http"
	"github.com/bft-labs/courier/internal/adapters/memory"
	nsqAdapter "github.com/bft-labs/courier/internal/adapters/nsq"
	redisAdapter "github.com/bft-labs/courier/internal/adapters/redis"
	"github.com/bft-labs/courier/internal/cliconfig"
	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/pkg/courier"
	"github.com/bft-labs/courier/pkg/log"
)

// closer releases an adapter on shutdown.
type closer func()

// buildStorage opens the configured backend.
func buildStorage(ctx context.Context, cfg cliconfig.Config) (courier.Storage, closer, error) {
	switch cfg.Storage {
	case cliconfig.StorageRedis:
		s, err := redisAdapter.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisNamespace)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case cliconfig.StorageMemory:
		return memory.NewStorage(), func() {}, nil
	default:
		return fs.NewStorage(cfg.StateDir), func() {}, nil
	}
}

// executorKinds is the built-in set plus configured extras.
func executorKinds(cfg cliconfig.Config) ([]domain.Kind, error) {
	kinds := domain.BuiltinKinds()
	for _, name := range cfg.ExtraKinds {
		k, err := domain.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// buildExecutors binds every kind to the configured transport.
func buildExecutors(cfg cliconfig.Config, logger log.Logger) ([]courier.Option, closer, error) {
	kinds, err := executorKinds(cfg)
	if err != nil {
		return nil, nil, err
	}

	var exec courier.Executor
	release := func() {}

	switch cfg.Transport {
	case cliconfig.TransportNSQ:
		e, err := nsqAdapter.NewExecutor(cfg.NSQAddr, cfg.NSQTopicPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("create nsq producer: %w", err)
		}
		exec = e
		release = e.Close
	default:
		client := &http.Client{Timeout: cfg.DispatchTimeout}
		opts := []httpAdapter.ExecutorOption{httpAdapter.WithLogger(logger)}
		if cfg.AuthKey != "" {
			opts = append(opts, httpAdapter.WithAuthToken(cfg.AuthKey))
		}
		exec = httpAdapter.NewExecutor(client, cfg.ServiceURL, opts...)
	}

	out := make([]courier.Option, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, courier.WithExecutor(k, exec))
	}
	return out, release, nil
}

// buildProbe returns the reachability probe, or nil when no URL is known.
func buildProbe(cfg cliconfig.Config) courier.ReachabilityProbe {
	if cfg.ProbeURL == "" {
		return nil
	}
	return httpAdapter.NewProbe(&http.Client{}, cfg.ProbeURL)
}
