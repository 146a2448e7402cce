package report

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"caixa/backend/internal/cache"
)

// Engine serves read-side projections through a TTL cache. It never writes
// to the ledger store.
type Engine struct {
	cache    cache.ReportCache
	cacheTTL time.Duration
}

func NewEngine(cacheStore cache.ReportCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Engine{cache: cacheStore, cacheTTL: cacheTTL}
}

// Cached returns the cached value for name and parts, or runs build and
// stores its JSON encoding. Cache failures degrade to a direct build.
func Cached[T any](ctx context.Context, e *Engine, name string, parts []string, build func() (T, error)) (T, error) {
	key := buildCacheKey(name, parts)
	if raw, ok, err := e.cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Str("component", "report").Str("report", name).Msg("cache read failed")
	} else if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	value, err := build()
	if err != nil {
		return value, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return value, nil
	}
	if err := e.cache.Set(ctx, key, raw, e.cacheTTL); err != nil {
		log.Warn().Err(err).Str("component", "report").Str("report", name).Msg("cache write failed")
	}
	return value, nil
}

func buildCacheKey(name string, parts []string) string {
	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "caixa:report:" + name + ":" + hex.EncodeToString(hash[:])
}
