package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/slotwatch/internal/booking/application"
	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
	"github.com/felixgeelhaar/slotwatch/internal/booking/infrastructure/caldav"
	"github.com/felixgeelhaar/slotwatch/internal/booking/infrastructure/notify"
	"github.com/felixgeelhaar/slotwatch/internal/booking/infrastructure/persistence"
	"github.com/felixgeelhaar/slotwatch/internal/booking/infrastructure/portal"
	"github.com/felixgeelhaar/slotwatch/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/slotwatch/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/slotwatch/pkg/config"
	"github.com/felixgeelhaar/slotwatch/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.PrometheusMetrics
	Health  *observability.HealthRegistry

	// Storage
	Repositories *RepositoryFactory
	AttemptRepo  domain.RescheduleAttemptRepository
	CookieStore  *persistence.RedisCookieStore

	// Publishers
	EventPublisher eventbus.Publisher

	// Portal
	Routes  *portal.Routes
	Session *portal.Session

	// Booking services
	Notifier  *application.NotificationHub
	Exporter  application.BookingExporter
	Guard     *application.SessionGuard
	Source    *application.PortalSlotSource
	Search    *application.ConstrainedSearch
	Committer *application.RescheduleCommitter

	restoredSession bool
}

// NewContainer wires every component from cfg. Redis and RabbitMQ are
// optional; outside development an unreachable configured service is fatal.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewPrometheusMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	repos, err := OpenRepositoryFactory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open attempt store: %w", err)
	}
	c.Repositories = repos
	c.AttemptRepo = repos.AttemptRepository()
	c.Health.Register("database", observability.PingChecker("database", observability.HealthStatusUnhealthy, repos.Ping))
	logger.Info("attempt store ready", "driver", repos.Driver().String())

	if err := c.initRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initPublisher(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initPortal(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initNotifier(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initExporter(); err != nil {
		c.Close()
		return nil, err
	}

	classifier := application.DefaultClassifier()
	c.Guard = application.NewSessionGuard(c.Session, c.Routes, classifier, logger)
	c.Source = application.NewPortalSlotSource(c.Session, c.Routes, logger)
	c.Search = application.NewConstrainedSearch(c.Source, application.SearchConfig{
		PrimaryFacility:   domain.FacilityID(cfg.PrimaryFacilityID),
		SecondaryFacility: domain.FacilityID(cfg.SecondaryFacilityID),
		LeadTimeMonths:    cfg.LeadTimeMonths,
	}, logger)
	c.Committer = application.NewRescheduleCommitter(c.Session, c.Routes, classifier, c.Notifier, cfg.PortalScheduleID, logger).
		WithAttemptRepository(c.AttemptRepo).
		WithMetrics(c.Metrics)
	if c.Exporter != nil {
		c.Committer.WithExporter(c.Exporter)
	}

	return c, nil
}

func (c *Container) initRedis(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		return nil
	}
	client, err := persistence.NewRedisClient(ctx, c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, portal cookies will not persist", "error", err)
		return nil
	}

	var sealer crypto.Sealer = crypto.PlainSealer{}
	if c.Config.CookieEncryptionKey != "" {
		aes, err := crypto.NewAESSealerFromBase64Key(c.Config.CookieEncryptionKey)
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("invalid COOKIE_ENCRYPTION_KEY: %w", err)
		}
		sealer = aes
	} else {
		c.Logger.Warn("COOKIE_ENCRYPTION_KEY not set, portal cookies are stored unencrypted")
	}

	c.CookieStore = persistence.NewRedisCookieStore(client, sealer, persistence.DefaultCookieTTL)
	c.Health.Register("redis", observability.PingChecker("redis", observability.HealthStatusDegraded, c.CookieStore.Ping))
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) initPublisher() error {
	if c.Config.RabbitMQURL == "" {
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}
	publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, eventbus.DefaultExchange, c.Logger)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}
	c.EventPublisher = publisher
	c.Health.Register("broker", observability.PingChecker("broker", observability.HealthStatusDegraded, publisher.Ping))
	return nil
}

func (c *Container) initPortal(ctx context.Context) error {
	settings := c.Config.PortalSettings()
	c.Routes = portal.NewRoutes(settings.BaseURL, settings.CountryCode, settings.ScheduleID, domain.FacilityID(c.Config.PrimaryFacilityID))

	session, err := portal.NewSession(c.Routes, portal.Config{
		Username:     settings.Username,
		Password:     settings.Password,
		StepInterval: settings.StepInterval,
		Breaker: portal.BreakerConfig{
			Failures: settings.BreakerFailures,
			Timeout:  settings.BreakerTimeout,
		},
	}, c.Logger)
	if err != nil {
		return err
	}
	c.Session = session.WithMetrics(c.Metrics)

	if c.CookieStore != nil {
		c.Session.WithCookieStore(c.CookieStore, settings.ScheduleID)
		restored, err := c.Session.RestoreCookies(ctx)
		if err != nil {
			c.Logger.Warn("failed to restore portal cookies", "error", err)
		}
		c.restoredSession = restored
	}

	c.Health.Register("portal", func(context.Context) observability.HealthCheckResult {
		state := c.Session.BreakerState()
		status := observability.HealthStatusHealthy
		if state != gobreaker.StateClosed {
			status = observability.HealthStatusDegraded
		}
		return observability.HealthCheckResult{
			Status:  status,
			Message: "circuit breaker " + state.String(),
		}
	})
	return nil
}

func (c *Container) initNotifier() error {
	cfg := c.Config
	channels := []application.Channel{notify.NewLogChannel(c.Logger)}

	if cfg.EmailEnabled() {
		ch, err := notify.NewSendGridChannel(cfg.SendGridAPIKey, cfg.SendGridFrom, cfg.NotifyEmailTo)
		if err != nil {
			return err
		}
		channels = append(channels, ch)
	}
	if cfg.PushoverEnabled() {
		ch, err := notify.NewPushoverChannel(cfg.PushoverToken, cfg.PushoverUser)
		if err != nil {
			return err
		}
		channels = append(channels, ch)
	}
	if cfg.PushbulletToken != "" {
		ch, err := notify.NewPushbulletChannel(cfg.PushbulletToken)
		if err != nil {
			return err
		}
		channels = append(channels, ch)
	}
	if _, ok := c.EventPublisher.(*eventbus.RabbitMQPublisher); ok {
		channels = append(channels, notify.NewBrokerChannel(c.EventPublisher))
	}

	c.Notifier = application.NewNotificationHub(channels, c.Metrics, c.Logger)
	c.Logger.Info("notification channels configured", "channels", c.Notifier.Channels())
	return nil
}

func (c *Container) initExporter() error {
	cfg := c.Config
	if !cfg.CalDAVEnabled() {
		return nil
	}
	loc, err := time.LoadLocation(cfg.PortalTimezone)
	if err != nil {
		return fmt.Errorf("invalid PORTAL_TIMEZONE: %w", err)
	}
	c.Exporter = caldav.NewExporter(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.PortalScheduleID, c.Logger).
		WithCalendarPath(cfg.CalDAVCalendarPath).
		WithLocation(loc)
	return nil
}

// Target parses the configured target schedule date.
func (c *Container) Target() (domain.TargetSchedule, error) {
	return domain.ParseTargetSchedule(c.Config.TargetScheduleDate)
}

// LoopConfig returns the orchestrator loop configuration. A restored
// session is probed before any sign-in.
func (c *Container) LoopConfig() application.LoopConfig {
	loop := c.Config.LoopSettings()
	return application.LoopConfig{
		RetryInterval:    loop.RetryInterval,
		ExceptionBackoff: loop.ExceptionBackoff,
		Cooldown:         loop.Cooldown,
		MaxExceptions:    loop.MaxExceptions,
		ProbeFirst:       c.Config.ProbeFirst || c.restoredSession,
	}
}

// RescheduleOrchestrator builds the search-and-commit loop.
func (c *Container) RescheduleOrchestrator() (*application.RetryOrchestrator, error) {
	target, err := c.Target()
	if err != nil {
		return nil, err
	}
	cycle := application.NewRescheduleCycle(c.Guard, c.Search, c.Committer, c.Notifier, target, c.Logger)
	return c.orchestrator(cycle), nil
}

// WatchOrchestrator builds the notify-only loop over the primary facility.
func (c *Container) WatchOrchestrator(filter application.DateFilter) (*application.RetryOrchestrator, error) {
	target, err := c.Target()
	if err != nil {
		return nil, err
	}
	cycle := application.NewWatchCycle(c.Guard, c.Source, c.Notifier, application.WatchConfig{
		Facility: domain.FacilityID(c.Config.PrimaryFacilityID),
		Target:   target,
		Limit:    c.Config.WatchDateLimit,
		Filter:   filter,
	}, c.Logger)
	return c.orchestrator(cycle), nil
}

func (c *Container) orchestrator(cycle application.Cycle) *application.RetryOrchestrator {
	return application.NewRetryOrchestrator(c.Guard, cycle, c.Notifier, c.LoopConfig(), c.Logger).
		WithMetrics(c.Metrics)
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.CookieStore != nil {
		if err := c.CookieStore.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.Repositories != nil {
		if err := c.Repositories.Close(); err != nil {
			c.Logger.Warn("error closing attempt store", "error", err)
		} else {
			c.Logger.Info("attempt store closed", "driver", c.Repositories.Driver().String())
		}
	}
}
