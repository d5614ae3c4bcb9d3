package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Import pprof for profiling
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/flight-rush/internal/di"
	"github.com/prohmpiriya/flight-rush/internal/metrics"
	"github.com/prohmpiriya/flight-rush/internal/repository"
	"github.com/prohmpiriya/flight-rush/internal/service"
	"github.com/prohmpiriya/flight-rush/internal/worker"
	"github.com/prohmpiriya/flight-rush/pkg/config"
	"github.com/prohmpiriya/flight-rush/pkg/database"
	"github.com/prohmpiriya/flight-rush/pkg/logger"
	"github.com/prohmpiriya/flight-rush/pkg/middleware"
	pkgredis "github.com/prohmpiriya/flight-rush/pkg/redis"
	"github.com/prohmpiriya/flight-rush/pkg/telemetry"
)

func main() {
	// Optimize Go runtime for high concurrency
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting flight booking engine...")

	ctx := context.Background()

	// Initialize tracing
	telemetryCfg := &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}
	if _, err := telemetry.Init(ctx, telemetryCfg); err != nil {
		appLog.Warn(fmt.Sprintf("Telemetry init failed, continuing without tracing: %v", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			appLog.Warn(fmt.Sprintf("Telemetry shutdown failed: %v", err))
		}
	}()

	// Register booking metrics
	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics init failed, continuing without metrics: %v", err))
	}

	// Initialize database connection tuned for booking-rush traffic
	var db *database.PostgresDB
	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second, // Fast fail
		MaxRetries:      3,
		RetryInterval:   1 * time.Second,
	}
	db, err = database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", dbCfg.MinConns, dbCfg.MaxConns))

	// Initialize Redis connection for the availability mirror and idempotency
	var redisClient *pkgredis.Client
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
	}
	redisClient, err = pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
	}
	defer redisClient.Close()
	appLog.Info(fmt.Sprintf("Redis connected (pool: %d, minIdle: %d)", redisCfg.PoolSize, redisCfg.MinIdleConns))

	// Initialize Kafka event publisher
	var eventPublisher service.EventPublisher
	eventPubCfg := &service.EventPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.EventsTopic,
		ServiceName: cfg.App.Name,
		ClientID:    cfg.Kafka.ClientID,
	}
	eventPublisher, err = service.NewKafkaEventPublisher(ctx, eventPubCfg)
	if err != nil {
		appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		eventPublisher = service.NewNoOpEventPublisher()
	} else {
		appLog.Info("Kafka event publisher connected")
	}

	// Initialize repositories
	flightRepo := repository.NewPostgresFlightRepository(db.Pool())
	seatRepo := repository.NewPostgresSeatRepository(db.Pool())
	ticketRepo := repository.NewPostgresTicketRepository(db.Pool())

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:             db,
		Redis:          redisClient,
		FlightRepo:     flightRepo,
		SeatRepo:       seatRepo,
		TicketRepo:     ticketRepo,
		EventPublisher: eventPublisher,
		Booking:        &cfg.Booking,
	})

	// Start the availability mirror warmer
	availabilityWorker := worker.NewAvailabilityWorker(flightRepo, container.FlightCache, nil)
	if container.FlightCache != nil {
		if err := availabilityWorker.Start(ctx); err != nil {
			appLog.Warn(fmt.Sprintf("Availability worker failed to start: %v", err))
		} else {
			appLog.Info("Availability worker started")
		}
	}

	// Setup Gin with optimized settings
	gin.SetMode(gin.ReleaseMode) // Always use release mode for performance
	gin.DisableConsoleColor()

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(telemetry.TracingMiddleware(cfg.OTel.ServiceName))
	router.Use(requestMetricsMiddleware())

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	// Metrics endpoint for monitoring
	router.GET("/metrics", func(c *gin.Context) {
		stats := db.Stats()
		c.JSON(http.StatusOK, gin.H{
			"db_pool": gin.H{
				"total_conns":        stats.TotalConns(),
				"acquired_conns":     stats.AcquiredConns(),
				"idle_conns":         stats.IdleConns(),
				"max_conns":          stats.MaxConns(),
				"constructing_conns": stats.ConstructingConns(),
			},
			"availability_worker": availabilityWorker.GetStats(),
		})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Status endpoint
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": cfg.App.Name,
			})
		})

		// Public flight lookups
		flights := v1.Group("/flights")
		{
			flights.GET("/search", container.FlightHandler.Search)
			flights.GET("/availableSeats", container.FlightHandler.AvailableSeats)
		}

		// Ticket routes require a caller identity
		tickets := v1.Group("/tickets")
		tickets.Use(middleware.CustomerID())

		// Configure idempotency middleware for write operations
		idempotencyConfig := middleware.DefaultIdempotencyConfig(redisClient.Client())
		idempotencyConfig.SkipPaths = []string{"/health", "/ready", "/metrics"}

		{
			// Write operations with idempotency
			tickets.POST("/book", middleware.IdempotencyMiddleware(idempotencyConfig), container.BookingHandler.BookTickets)
			tickets.POST("/seat", middleware.IdempotencyMiddleware(idempotencyConfig), container.BookingHandler.BookSeat)
			tickets.DELETE("/:ticketID", middleware.IdempotencyMiddleware(idempotencyConfig), container.BookingHandler.CancelTicket)

			// Read operations without idempotency
			tickets.GET("/history", container.BookingHandler.History)
		}
	}

	// Create HTTP server with optimized settings
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Start pprof server on separate port for profiling
	go func() {
		pprofAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1000)
		appLog.Info(fmt.Sprintf("pprof server listening on %s", pprofAddr))
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			appLog.Error(fmt.Sprintf("pprof server error: %v", err))
		}
	}()

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("Booking engine listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	availabilityWorker.Stop()

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	if err := eventPublisher.Close(); err != nil {
		appLog.Warn(fmt.Sprintf("Event publisher close failed: %v", err))
	}

	appLog.Info("Server exited gracefully")
}

// requestMetricsMiddleware records per-route HTTP request durations
func requestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metrics.RecordRequestDuration(
			c.Request.Context(),
			time.Since(start).Seconds(),
			c.Request.Method,
			route,
			c.Writer.Status(),
		)
	}
}
