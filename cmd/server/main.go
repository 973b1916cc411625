package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/halaqah/internal/auth"
	"github.com/p-n-ai/halaqah/internal/curriculum"
	"github.com/p-n-ai/halaqah/internal/exam"
	"github.com/p-n-ai/halaqah/internal/platform/cache"
	"github.com/p-n-ai/halaqah/internal/platform/config"
	"github.com/p-n-ai/halaqah/internal/platform/database"
	"github.com/p-n-ai/halaqah/internal/platform/lock"
	"github.com/p-n-ai/halaqah/internal/points"
	"github.com/p-n-ai/halaqah/internal/scoring"
	"github.com/p-n-ai/halaqah/internal/server"
	"github.com/p-n-ai/halaqah/internal/student"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := build(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store, "lock", cfg.Lock.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires the stores, ledgers and HTTP server selected by cfg.
func build(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := map[string]server.Pinger{}

	idx, err := curriculum.Load(cfg.Curriculum.Path)
	if err != nil {
		return nil, err
	}
	rules, err := points.LoadRules(cfg.Points.RulesPath)
	if err != nil {
		return nil, err
	}
	policy := scoring.Policy{
		DeductionRate:          cfg.Scoring.DeductionRate,
		GatekeeperThreshold:    cfg.Scoring.GatekeeperThreshold,
		PassingThreshold:       cfg.Scoring.PassingThreshold,
		QuestionsPerPart:       cfg.Scoring.QuestionsPerPart,
		ReviewQuestionsPerUnit: cfg.Scoring.ReviewQuestionsPerUnit,
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("scoring policy: %w", err)
	}

	authn, err := loadAuthenticator(cfg.Auth.TokensPath)
	if err != nil {
		return nil, err
	}

	var (
		students    student.Directory
		pointStore  points.Store
		examStore   exam.Store
		eventLogger exam.EventLogger
	)
	switch cfg.Store {
	case "postgres":
		db, err := database.Open(ctx, database.Options{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		checks["database"] = db

		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				a.close()
				return nil, err
			}
		}
		dir, err := student.NewPostgresDirectory(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		ps, err := points.NewPostgresStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		es, err := exam.NewPostgresStore(db.Pool)
		if err != nil {
			a.close()
			return nil, err
		}
		students, pointStore, examStore = dir, ps, es
		eventLogger = exam.NewPostgresEventLogger(db.Pool)
	default:
		dir := student.NewMemoryDirectory()
		students = dir
		pointStore = points.NewMemoryStore(dir)
		examStore = exam.NewMemoryStore()
		eventLogger = exam.NopEventLogger{}
	}

	var locker lock.Locker
	switch cfg.Lock.Backend {
	case "redis":
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { c.Close() })
		checks["cache"] = c
		locker = c.Locker(cfg.Lock.TTL)
	default:
		locker = lock.NewMemory()
	}

	ledger := points.NewLedger(points.LedgerConfig{
		Store:        pointStore,
		Students:     students,
		Rules:        rules,
		Locker:       locker,
		BudgetCap:    cfg.Points.ManualBudgetCap,
		HistoryLimit: cfg.Points.HistoryLimit,
	})
	exams := exam.NewService(exam.ServiceConfig{
		Store:         examStore,
		Students:      students,
		Curriculum:    idx,
		Policy:        policy,
		Events:        eventLogger,
		Points:        ledger,
		AwardOnCommit: cfg.Points.AwardExamOnCommit,
	})

	a.handler = server.New(server.Config{
		Exams:      exams,
		Points:     ledger,
		Students:   students,
		Curriculum: idx,
		Auth:       authn,
		Checks:     checks,
	}).Handler()
	return a, nil
}

func loadAuthenticator(path string) (*auth.TokenAuthenticator, error) {
	if path == "" {
		slog.Warn("no token file configured, every authenticated route will answer 401")
		return auth.NewTokenAuthenticator(nil)
	}
	return auth.LoadTokens(path)
}
