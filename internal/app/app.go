// Package app assembles the service graph shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/telebot.v3"

	"github.com/noah-isme/sma-substitute-api/internal/bot"
	"github.com/noah-isme/sma-substitute-api/internal/handler"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/notifier"
	"github.com/noah-isme/sma-substitute-api/internal/repository"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	"github.com/noah-isme/sma-substitute-api/pkg/cache"
	"github.com/noah-isme/sma-substitute-api/pkg/config"
	"github.com/noah-isme/sma-substitute-api/pkg/database"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/export"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
	"github.com/noah-isme/sma-substitute-api/pkg/namematch"
	"github.com/noah-isme/sma-substitute-api/pkg/roster"
	"github.com/noah-isme/sma-substitute-api/pkg/scheduler"
)

const cacheNamespace = "substitutions"

type backgroundNotifier interface {
	service.Notifier
	Start(ctx context.Context)
	Stop()
}

// App holds the wired services and their resources.
type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	DB            *sqlx.DB
	Redis         *redis.Client
	Metrics       *service.MetricsService
	Roster        *models.Roster
	Substitutions *service.SubstitutionService
	Workload      *service.WorkloadService

	cache    *repository.CacheRepository
	notifier service.Notifier
	telegram *telebot.Bot
	bot      *bot.Bot
}

// New connects to the stores, loads the roster and wires every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: service.NewMetricsService()}

	r, err := roster.Load(cfg.Substitution.RosterFile)
	if err != nil {
		return nil, err
	}
	if err := roster.OverrideLastResort(r, cfg.Substitution.LastResortIDs); err != nil {
		return nil, err
	}
	a.Roster = r
	logger.Info("roster loaded", zap.Int("teachers", len(r.FullNames)), zap.Int("schedule_rows", len(r.Schedule)))

	db, err := database.NewPostgres(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.DB = db

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, name match cache disabled", zap.Error(err))
		redisClient = nil
	}
	a.Redis = redisClient
	a.cache = repository.NewCacheRepository(redisClient, cacheNamespace, logger)

	if err := a.buildNotifier(); err != nil {
		a.Close()
		return nil, err
	}

	absences := repository.NewAbsenceRepository(db)
	pending := repository.NewPendingAssignmentRepository(db)
	ledger := repository.NewFinalizedAssignmentRepository(db)
	validate := validator.New()

	lifecycle := service.NewAssignmentLifecycleService(pending, ledger, service.AssignmentLifecycleConfig{ExpireAfter: cfg.Substitution.ExpireAfter}, a.Metrics, logger.Named("lifecycle"))

	var model service.ModelNameMatcher
	if cfg.NameMatch.Enabled {
		client := namematch.NewClient(namematch.Config{
			BaseURL: cfg.NameMatch.BaseURL,
			APIKey:  cfg.NameMatch.APIKey,
			Model:   cfg.NameMatch.Model,
			Timeout: cfg.NameMatch.Timeout,
		}, logger.Named("namematch"))
		model = service.NewCachedModelMatcher(client, a.cache, cfg.NameMatch.CacheTTL, a.Metrics, logger.Named("namematch_cache"))
		if redisClient != nil {
			names := make([]string, 0, len(r.NameToID))
			for name := range r.NameToID {
				names = append(names, name)
			}
			if _, err := service.InvalidateModelCache(ctx, a.cache, names, logger.Named("namematch_cache")); err != nil {
				logger.Warn("name match cache invalidation failed", zap.Error(err))
			}
		}
	}
	matcher := service.NewNameMatcher(r.NameToID, model, service.NameMatcherConfig{
		HonorificPrefixes:  cfg.Substitution.HonorificPrefixes,
		FuzzyThreshold:     cfg.Substitution.FuzzyThreshold,
		ModelMinConfidence: cfg.NameMatch.MinConfidence,
		ModelTimeout:       cfg.NameMatch.Timeout,
	}, a.Metrics, logger.Named("names"))
	detector := service.NewChangeDetector(matcher, cfg.Substitution.AIAcceptThreshold, cfg.NameMatch.MinConfidence, logger.Named("reconcile"))

	a.Substitutions = service.NewSubstitutionService(
		r,
		absences,
		ledger,
		lifecycle,
		service.NewSubstituteScorer(nil, logger.Named("scorer")),
		detector,
		service.NewReportRenderer(r),
		a.notifier,
		validate,
		service.SubstitutionConfig{Location: cfg.Location()},
		a.Metrics,
		logger.Named("substitutions"),
	)
	a.Workload = service.NewWorkloadService(ledger, r, export.NewRegistry(cfg.Export.PDFFontPath), validate, logger.Named("workload"))

	if a.telegram != nil && cfg.Telegram.Enabled {
		a.bot = bot.New(a.Substitutions, a.Workload, bot.Config{AdminIDs: cfg.Telegram.AdminIDs, Timeout: cfg.Jobs.JobTimeout}, logger.Named("bot"))
		a.bot.Register(a.telegram)
	}
	return a, nil
}

func (a *App) buildNotifier() error {
	cfg := a.Config.Telegram
	if cfg.Token == "" {
		a.notifier = notifier.NewLogNotifier(a.Logger.Named("notify"))
		return nil
	}

	tb, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.Token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			a.Logger.Warn("telegram handler error", zap.Error(err))
		},
	})
	if err != nil {
		return fmt.Errorf("init telegram bot: %w", err)
	}
	a.telegram = tb

	if cfg.AdminChatID == 0 {
		a.Logger.Warn("TELEGRAM_ADMIN_CHAT_ID is not set, notifications go to the log")
		a.notifier = notifier.NewLogNotifier(a.Logger.Named("notify"))
		return nil
	}
	a.notifier = notifier.NewTelegramNotifier(notifier.NewTelebotAdapter(tb), cfg.AdminChatID, jobs.QueueConfig{
		Workers:    a.Config.Jobs.NotifyWorkers,
		MaxRetries: a.Config.Jobs.NotifyRetries,
		RetryDelay: 2 * time.Second,
	}, a.Logger.Named("notify"))
	return nil
}

// Start launches the notification workers and, when enabled, the chat bot poller.
func (a *App) Start(ctx context.Context) {
	if n, ok := a.notifier.(backgroundNotifier); ok {
		n.Start(ctx)
	}
	if a.bot != nil {
		go a.telegram.Start()
		a.Logger.Info("telegram bot polling started", zap.Int("admins", len(a.Config.Telegram.AdminIDs)))
	}
}

// ScheduleJobs registers the cron jobs on s.
func (a *App) ScheduleJobs(s *scheduler.Scheduler) error {
	if err := s.Add("expire_pending", a.Config.Jobs.ExpireCron, a.Config.Jobs.JobTimeout, func(ctx context.Context) error {
		count, err := a.Substitutions.ExpireStale(ctx)
		if err != nil {
			return err
		}
		a.Logger.Info("pending assignments expired", zap.Int64("count", count))
		return nil
	}); err != nil {
		return err
	}
	return s.Add("daily_process", a.Config.Jobs.DailyProcessCron, a.Config.Jobs.JobTimeout, func(ctx context.Context) error {
		_, err := a.Substitutions.ProcessDate(ctx, a.Substitutions.Today())
		if errors.Is(err, appErrors.ErrConflict) {
			a.Logger.Info("daily processing skipped", zap.Error(err))
			return nil
		}
		return err
	})
}

// ReadinessChecks lists the dependency probes for /ready.
func (a *App) ReadinessChecks() map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return a.DB.PingContext(ctx) },
	}
	if a.Redis != nil {
		checks["redis"] = a.cache.Ping
	}
	return checks
}

// Router builds the HTTP engine.
func (a *App) Router() *gin.Engine {
	return NewRouter(a.Config, a.Logger, a.Metrics, a.Substitutions, a.Workload, a.ReadinessChecks())
}

// Close stops background work and releases connections.
func (a *App) Close() {
	if a.telegram != nil && a.bot != nil {
		a.telegram.Stop()
	}
	if n, ok := a.notifier.(backgroundNotifier); ok {
		n.Stop()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("close postgres", zap.Error(err))
		}
	}
}
