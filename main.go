// Package main provides the main entry point for the WhatsApp API campaign service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/lorenrocu/whatsapp-campaigns/app/events"
	"github.com/lorenrocu/whatsapp-campaigns/app/handlers"
	"github.com/lorenrocu/whatsapp-campaigns/app/middleware"
	"github.com/lorenrocu/whatsapp-campaigns/app/queue"
	"github.com/lorenrocu/whatsapp-campaigns/app/router"
	"github.com/lorenrocu/whatsapp-campaigns/app/scheduler"
	businessflow "github.com/lorenrocu/whatsapp-campaigns/business_flow"
	"github.com/lorenrocu/whatsapp-campaigns/config"
	"github.com/lorenrocu/whatsapp-campaigns/repository"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
	closers   []func() error
}

func main() {
	log.Println("Starting WhatsApp campaigns service...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	// Stop background workers, newest first
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}
	for _, closeFn := range app.closers {
		if err := closeFn(); err != nil {
			log.Printf("Error closing resource: %v", err)
		}
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(
			log.New(os.Stdout, "gorm ", log.LstdFlags|log.LUTC),
			gormlogger.Config{
				SlowThreshold:             cfg.SlowQueryTime,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	if cfg.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Println("Database schema migrated")
	}

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// It returns a nil client when redis is not configured.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", opt.DB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeQueue picks the redis backed task queue when redis is available
func initializeQueue(rc *redis.Client, cfg *config.ProductionConfig) queue.Backend {
	if rc == nil {
		log.Println("Redis not configured, using in-memory task queue (pending tasks are lost on restart)")
		return queue.NewMemoryQueue()
	}
	return queue.NewRedisQueue(rc, cfg.Cache.RedisPrefix+cfg.Dispatch.QueueKey)
}

// initializePublisher returns the Kafka lifecycle publisher, or a no-op one when events are disabled
func initializePublisher(cfg config.EventsConfig) (events.Publisher, error) {
	if !cfg.Enabled {
		return events.NoopPublisher{}, nil
	}

	producer, err := events.NewSyncProducer(events.KafkaConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		ClientID: cfg.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Printf("Kafka publisher ready (topic=%s)", cfg.Topic)
	return events.NewKafkaPublisher(producer, cfg.Topic), nil
}

func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var (
		stopFuncs []func()
		closers   []func() error
	)

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthCheck))
		closers = append(closers, rc.Close)
	}

	publisher, err := initializePublisher(cfg.Events)
	if err != nil {
		return nil, err
	}
	closers = append(closers, publisher.Close)

	taskQueue := initializeQueue(rc, cfg)
	engineLogger := scheduler.NewLogger(cfg.Logging)

	// Initialize repositories
	campaignRepo := repository.NewWhatsappCampaignRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	inboxRepo := repository.NewInboxRepository(db)
	contactRepo := repository.NewContactRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	deliveryRepo := repository.NewCampaignDeliveryRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	sequenceRepo := repository.NewSequenceCounterRepository(db)
	transact := repository.NewTransactor(db)

	// Business flows
	lifecycle := businessflow.NewWhatsappCampaignLifecycle(campaignRepo, taskQueue, publisher)
	campaignFlow := businessflow.NewWhatsappCampaignFlow(
		campaignRepo,
		accountRepo,
		inboxRepo,
		deliveryRepo,
		sequenceRepo,
		lifecycle,
		transact,
	)

	// Dispatch engine
	resolver := scheduler.NewAudienceResolver(contactRepo)
	planner := scheduler.NewDispatchPlanner(campaignRepo, accountRepo, resolver, lifecycle, taskQueue, cfg.Dispatch, engineLogger)
	sender := scheduler.NewMessageSender(
		campaignRepo,
		accountRepo,
		inboxRepo,
		contactRepo,
		conversationRepo,
		deliveryRepo,
		scheduler.NewWhatsappClient(cfg.Gateway),
		taskQueue,
		transact,
		cfg.Dispatch,
		engineLogger,
	)
	poller := scheduler.NewCompletionPoller(campaignRepo, notificationRepo, resolver, lifecycle, taskQueue, cfg.Dispatch, engineLogger)

	worker := queue.NewWorker(taskQueue, queue.WorkerConfig{
		Workers:      cfg.Dispatch.Workers,
		PollInterval: cfg.Dispatch.PollInterval,
	}, engineLogger)
	scheduler.RegisterHandlers(worker, planner, sender, poller)
	stopFuncs = append(stopFuncs, worker.Start(context.Background()))

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewCampaignScheduler(campaignRepo, lifecycle, rc, cfg.Cache.RedisPrefix, cfg.Scheduler, engineLogger)
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
	}

	// Initialize handlers and middleware
	campaignHandler := handlers.NewWhatsappCampaignHandler(campaignFlow)
	identityMiddleware := middleware.NewIdentityMiddleware(cfg.Security.UserIDHeader)

	// Initialize router
	appRouter := router.NewFiberRouter(cfg, campaignHandler, identityMiddleware)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
		closers:   closers,
	}

	return application, nil
}
