package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	cfnats "github.com/Strob0t/CourseForge/internal/adapter/nats"
	"github.com/Strob0t/CourseForge/internal/adapter/natskv"
	"github.com/Strob0t/CourseForge/internal/adapter/ristretto"
	"github.com/Strob0t/CourseForge/internal/adapter/tiered"
	"github.com/Strob0t/CourseForge/internal/config"
	"github.com/Strob0t/CourseForge/internal/port/cache"
)

// l1Expire bounds how long a tiered L1 entry lives before it is re-read
// from the shared L2 bucket.
const l1Expire = 10 * time.Minute

// buildTenantCache returns the configured tenant cache backend and a close
// function for it. The tiered backend needs a connected queue.
func buildTenantCache(ctx context.Context, cfg *config.Config, queue *cfnats.Queue) (cache.Cache, func(), error) {
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return nil, nil, fmt.Errorf("ristretto: %w", err)
	}

	switch cfg.Cache.Backend {
	case config.CacheRistretto:
		slog.Info("tenant cache", "backend", "ristretto", "max_mb", cfg.Cache.L1MaxSizeMB)
		return l1, l1.Close, nil
	case config.CacheTiered:
		if queue == nil {
			l1.Close()
			return nil, nil, fmt.Errorf("cache backend %q requires nats", cfg.Cache.Backend)
		}
		l2, err := natskv.Open(ctx, queue.JetStream(), cfg.Cache.L2Bucket, 0)
		if err != nil {
			l1.Close()
			return nil, nil, fmt.Errorf("nats kv: %w", err)
		}
		slog.Info("tenant cache", "backend", "tiered", "bucket", cfg.Cache.L2Bucket)
		return tiered.New(l1, l2, l1Expire), l1.Close, nil
	default:
		l1.Close()
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// hostOf returns the host[:port] of an origin URL.
func hostOf(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return "", false
	}
	return u.Host, true
}
