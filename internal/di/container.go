package di

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/prohmpiriya/concert-booking/internal/cache"
	"github.com/prohmpiriya/concert-booking/internal/gateway"
	"github.com/prohmpiriya/concert-booking/internal/handler"
	"github.com/prohmpiriya/concert-booking/internal/lock"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/pkg/config"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
)

// Container holds all dependencies for the booking service
type Container struct {
	// Infrastructure
	Infra *Infrastructure
	Clock clockwork.Clock

	// Repositories
	TokenRepo       repository.TokenRepository
	SeatRepo        repository.SeatRepository
	ReservationRepo repository.ReservationRepository
	ScheduleRepo    repository.ScheduleRepository
	BalanceRepo     repository.BalanceRepository
	PaymentRepo     repository.PaymentRepository

	// Coordination
	Locker    lock.Locker
	SeatCache cache.SeatCache
	Gateway   gateway.PaymentGateway

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	QueueService       service.QueueService
	CatalogService     service.CatalogService
	BalanceService     service.BalanceService
	PaymentProcessor   service.PaymentProcessor
	ReservationService service.ReservationService

	// Handlers
	HealthHandler      *handler.HealthHandler
	QueueHandler       *handler.QueueHandler
	CatalogHandler     *handler.CatalogHandler
	ReservationHandler *handler.ReservationHandler
	BalanceHandler     *handler.BalanceHandler
	AdminHandler       *handler.AdminHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Config *config.Config
	Infra  *Infrastructure
	Logger *logger.Logger
	// Clock defaults to the real clock
	Clock clockwork.Clock
	// EventPublisher overrides the publisher chosen from KAFKA_ENABLED
	EventPublisher service.EventPublisher
	// Gateway overrides the gateway chosen from PAYMENT_GATEWAY
	Gateway gateway.PaymentGateway
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *ContainerConfig) (*Container, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, fmt.Errorf("container config is required")
	}
	if cfg.Infra == nil {
		cfg.Infra = &Infrastructure{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	appCfg := cfg.Config
	log := cfg.Logger

	c := &Container{
		Infra: cfg.Infra,
		Clock: cfg.Clock,
	}

	if err := c.initStores(ctx, appCfg, log); err != nil {
		return nil, err
	}

	c.Gateway = cfg.Gateway
	if c.Gateway == nil {
		gw, err := newGateway(appCfg)
		if err != nil {
			return nil, err
		}
		c.Gateway = gw
	}
	log.Info(fmt.Sprintf("Payment gateway: %s", c.Gateway.Name()))

	c.EventPublisher = cfg.EventPublisher
	if c.EventPublisher == nil {
		c.EventPublisher = newEventPublisher(ctx, appCfg, log)
	}

	// Initialize services
	c.QueueService = service.NewQueueService(c.TokenRepo, c.Locker, c.Clock, &service.QueueServiceConfig{
		Capacity:    int64(appCfg.Queue.MaxActive),
		ActiveLease: appCfg.Queue.ActiveLease,
		WaitPerSlot: appCfg.Queue.WaitPerSlot,
	})
	c.CatalogService = service.NewCatalogService(c.ScheduleRepo, c.SeatRepo, c.SeatCache, c.Clock, &service.CatalogServiceConfig{
		LayoutTTL:   appCfg.Cache.LayoutTTL,
		ScheduleTTL: appCfg.Cache.ScheduleTTL,
	})
	c.BalanceService = service.NewBalanceService(c.BalanceRepo)
	c.PaymentProcessor = service.NewPaymentProcessor(c.PaymentRepo, c.Gateway, c.Clock, log, &service.PaymentProcessorConfig{
		Currency: appCfg.Payment.Currency,
	})
	c.ReservationService = service.NewReservationService(service.ReservationDeps{
		Queue:        c.QueueService,
		Seats:        c.SeatRepo,
		Reservations: c.ReservationRepo,
		Schedules:    c.ScheduleRepo,
		Cache:        c.SeatCache,
		Balance:      c.BalanceService,
		Payments:     c.PaymentProcessor,
		Events:       c.EventPublisher,
		Locker:       c.Locker,
		Clock:        c.Clock,
		Logger:       log,
	}, &service.ReservationServiceConfig{
		HoldDuration: appCfg.Booking.HoldDuration,
		LockOptions: lock.Options{
			WaitTimeout: appCfg.Booking.LockWaitTimeout,
			LeaseTime:   appCfg.Booking.LockLeaseTime,
		},
	})

	// Initialize handlers
	checks := map[string]handler.HealthChecker{"database": nil, "redis": nil}
	if c.Infra.DB != nil {
		checks["database"] = c.Infra.DB
	}
	if c.Infra.Redis != nil {
		checks["redis"] = c.Infra.Redis
	}
	c.HealthHandler = handler.NewHealthHandler(checks)
	c.QueueHandler = handler.NewQueueHandler(c.QueueService)
	c.CatalogHandler = handler.NewCatalogHandler(c.CatalogService, c.QueueService)
	c.ReservationHandler = handler.NewReservationHandler(c.ReservationService)
	c.BalanceHandler = handler.NewBalanceHandler(c.BalanceService)
	c.AdminHandler = handler.NewAdminHandler(c.CatalogService, c.ReservationService)

	return c, nil
}

// Close flushes the event publisher. Infrastructure is closed by its owner.
func (c *Container) Close() error {
	if c.EventPublisher != nil {
		return c.EventPublisher.Close()
	}
	return nil
}

func (c *Container) initStores(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.UsesMemoryStore() {
		c.TokenRepo = repository.NewMemoryTokenRepository()
		c.SeatRepo = repository.NewMemorySeatRepository()
		c.ReservationRepo = repository.NewMemoryReservationRepository()
		c.ScheduleRepo = repository.NewMemoryScheduleRepository()
		c.BalanceRepo = repository.NewMemoryBalanceRepository(c.Clock)
		c.PaymentRepo = repository.NewMemoryPaymentRepository()
		c.Locker = lock.NewMemoryLocker(c.Clock)
		c.SeatCache = cache.NewMemorySeatCache(c.Clock)
		return nil
	}

	if c.Infra.DB == nil || c.Infra.Redis == nil {
		return fmt.Errorf("postgres store driver requires database and redis connections")
	}

	pool := c.Infra.DB.Pool()
	c.SeatRepo = repository.NewPostgresSeatRepository(pool)
	c.ReservationRepo = repository.NewPostgresReservationRepository(pool)
	c.ScheduleRepo = repository.NewPostgresScheduleRepository(pool)
	c.BalanceRepo = repository.NewPostgresBalanceRepository(pool)
	c.PaymentRepo = repository.NewPostgresPaymentRepository(pool)

	tokenRepo := repository.NewRedisTokenRepository(c.Infra.Redis)
	locker := lock.NewRedisLocker(c.Infra.Redis, c.Clock)
	seatCache := cache.NewRedisSeatCache(c.Infra.Redis, log)

	// Pre-load Lua scripts into Redis; EvalWithFallback covers a failure
	if err := tokenRepo.LoadScripts(ctx); err != nil {
		log.Warn(fmt.Sprintf("Failed to pre-load token scripts: %v", err))
	}
	if err := locker.LoadScripts(ctx); err != nil {
		log.Warn(fmt.Sprintf("Failed to pre-load lock scripts: %v", err))
	}
	if err := seatCache.LoadScripts(ctx); err != nil {
		log.Warn(fmt.Sprintf("Failed to pre-load cache scripts: %v", err))
	}

	c.TokenRepo = tokenRepo
	c.Locker = locker
	c.SeatCache = seatCache
	return nil
}

func newGateway(cfg *config.Config) (gateway.PaymentGateway, error) {
	switch cfg.Payment.Gateway {
	case "stripe":
		gw, err := gateway.NewStripeGateway(&gateway.StripeGatewayConfig{
			SecretKey: cfg.Payment.StripeSecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stripe gateway: %w", err)
		}
		return gw, nil
	default:
		mockCfg := gateway.DefaultMockGatewayConfig()
		mockCfg.SuccessRate = cfg.Payment.MockSuccessRate
		mockCfg.DelayMs = cfg.Payment.MockDelayMs
		return gateway.NewMockGateway(mockCfg), nil
	}
}

func newEventPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) service.EventPublisher {
	if !cfg.Kafka.Enabled {
		return service.NewNoOpEventPublisher()
	}

	publisher, err := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		ServiceName: cfg.App.Name,
		ClientID:    cfg.Kafka.ClientID,
	})
	if err != nil {
		log.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		return service.NewNoOpEventPublisher()
	}
	log.Info("Kafka event publisher connected")
	return publisher
}
