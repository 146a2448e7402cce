package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"caixa/backend/internal/cache"
	"caixa/backend/internal/config"
	"caixa/backend/internal/httpapi"
	"caixa/backend/internal/jobs"
	"caixa/backend/internal/logging"
	"caixa/backend/internal/report"
	"caixa/backend/internal/service"
	"caixa/backend/internal/store"
	"caixa/backend/internal/store/memory"
	pgstore "caixa/backend/internal/store/postgres"
	"caixa/backend/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	if err := logging.Init(cfg.LogLevel, cfg.LogPretty); err != nil {
		log.Fatal().Err(err).Msg("invalid LOG_LEVEL")
	}
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("repository unavailable")
	}
	closers := []func() error{closeRepo}

	reportCache := cache.ReportCache(cache.NewMemoryReportCache())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-process report cache")
			_ = redisCache.Close()
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Str("cache", "redis").Msg("report cache ready")
		}
	} else {
		log.Info().Str("cache", "memory").Msg("report cache ready")
	}

	svc := service.New(repo, report.NewEngine(reportCache, cfg.ReportCacheTTL()))
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.TokenTTL(), cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, log.Logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	jobsDone := make(chan struct{})
	if cfg.JobsEnabled {
		runner := jobs.NewRunner(cfg.JobInterval(), log.Logger, jobs.MaintenanceTasks(svc, log.Logger)...)
		go func() {
			defer close(jobsDone)
			runner.Run(jobsCtx)
		}()
	} else {
		close(jobsDone)
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("POS backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	stopJobs()
	<-jobsDone

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

// openRepository picks postgres when DATABASE_URL is set, then sqlite when
// SQLITE_PATH is set, and otherwise the seeded in-memory store. A configured
// database that cannot be reached is an error, never a silent fallback.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		if cfg.MigrateOnStart {
			if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
				return nil, nil, fmt.Errorf("postgres migration: %w", err)
			}
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		log.Info().Str("repository", "postgres").Msg("repository ready")
		return pg, pg.Close, nil
	case cfg.SQLitePath != "":
		lite, err := sqlite.Open(cfg.SQLitePath, log.Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite %s: %w", cfg.SQLitePath, err)
		}
		log.Info().Str("repository", "sqlite").Str("path", cfg.SQLitePath).Msg("repository ready")
		return lite, lite.Close, nil
	default:
		log.Info().Str("repository", "memory").Msg("repository ready")
		return memory.NewSeeded(), func() error { return nil }, nil
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	// Reject all-same-digit PINs.
	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	// Reject ascending or descending sequential PINs (e.g. 123456, 987654).
	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
