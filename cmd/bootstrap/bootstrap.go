package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healconnect/config"
	deliveryHttp "healconnect/internal/delivery/http"
	"healconnect/internal/delivery/http/handler"
	"healconnect/internal/delivery/http/middleware"
	"healconnect/internal/infrastructure/cache"
	"healconnect/internal/infrastructure/database"
	"healconnect/internal/repository"
	"healconnect/internal/service"
	"healconnect/internal/usecase"
	"healconnect/pkg/jwt"
	"healconnect/pkg/validator"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	Server      *http.Server

	Identity      usecase.PatientIdentityUsecase
	Scheduler     *service.MaintenanceScheduler
	Notifications *service.NotificationService
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Setup logger
	app.Log = NewLogger(cfg)
	app.Log.Info("Configuration loaded successfully")

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DB, app.Log, cfg.IsDev())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis, app.Log)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient

	// Initialize all layers
	app.initialize()

	return app, nil
}

// NewLogger configures logrus: JSON outside development, debug level in it.
func NewLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)
	if cfg.IsDev() {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// initialize wires repositories, services, usecases and the HTTP server.
func (app *App) initialize() {
	cfg, log, db := app.Config, app.Log, app.DB

	// Initialize JWT service
	jwtService := jwt.NewJWTService(cfg.JWT)

	// Initialize validator
	customValidator := validator.NewValidator()

	// Initialize repositories
	transactor := repository.NewTransactor(db)
	userRepo := repository.NewUserRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	prescriptionRepo := repository.NewPrescriptionRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)

	// Initialize services
	allocator := service.NewSequenceAllocator(sequenceRepo, log, cfg.Clinic.SequenceMaxAttempts)
	ledger := service.NewInventoryLedger(inventoryRepo, log)
	auditService := service.NewAuditService(log, auditLogRepo)
	app.Notifications = service.NewNotificationService(service.NewLogNotifier(log), log, cfg.Clinic.NotifyTimeout)
	runGuard := service.NewRedisRunGuard(app.RedisClient, log)

	// Initialize usecases
	authUsecase := usecase.NewAuthUsecase(log, transactor, userRepo, patientRepo, allocator, auditService, jwtService, app.RedisClient)
	patientUsecase := usecase.NewPatientUsecase(log, patientRepo, allocator, auditService)
	app.Identity = usecase.NewPatientIdentityUsecase(log, transactor, patientRepo, prescriptionRepo, appointmentRepo, auditService, runGuard, cfg.Clinic.DedupeLockTTL)
	appointmentUsecase := usecase.NewAppointmentUsecase(log, appointmentRepo, patientRepo, userRepo, auditService, app.Notifications)
	prescriptionUsecase := usecase.NewPrescriptionUsecase(log, prescriptionRepo, patientRepo, inventoryRepo, ledger, allocator, auditService, app.Notifications)
	inventoryUsecase := usecase.NewInventoryUsecase(log, inventoryRepo, ledger, auditService)
	auditLogUsecase := usecase.NewAuditLogUsecase(log, auditLogRepo)

	// Initialize maintenance jobs
	alerts := service.NewInventoryAlerts(inventoryRepo, userRepo, app.Notifications, log, cfg.Clinic.ExpiryWarningDays)
	jobs := alerts.Jobs()
	if cfg.Clinic.DedupeOnSchedule {
		jobs = append(jobs, usecase.DeduplicationJob(app.Identity))
	}
	app.Scheduler = service.NewMaintenanceScheduler(service.NewRedisAlertTracker(app.RedisClient, log), cfg.Clinic.MaintenanceInterval, log, jobs...)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authUsecase, customValidator)
	patientHandler := handler.NewPatientHandler(patientUsecase, app.Identity, customValidator)
	appointmentHandler := handler.NewAppointmentHandler(appointmentUsecase, customValidator)
	prescriptionHandler := handler.NewPrescriptionHandler(prescriptionUsecase, customValidator)
	inventoryHandler := handler.NewInventoryHandler(inventoryUsecase, customValidator)
	auditLogHandler := handler.NewAuditLogHandler(auditLogUsecase)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService, app.RedisClient)
	corsMiddleware := middleware.NewCORSMiddleware()

	// Initialize router
	router := deliveryHttp.NewRouter(
		authHandler,
		patientHandler,
		appointmentHandler,
		prescriptionHandler,
		inventoryHandler,
		auditLogHandler,
		authMiddleware,
		corsMiddleware,
	)

	// Create server
	app.Server = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.App.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the HTTP server and the maintenance scheduler, then blocks
// until shutdown.
func (app *App) Run() {
	app.Scheduler.Start()

	// Start server in goroutine
	go func() {
		app.Log.Infof("Server starting on port %s", app.Config.App.Port)
		app.Log.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Log.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		app.Log.Errorf("Server forced to shutdown: %v", err)
	}

	// Close connections
	app.Close()

	app.Log.Info("Server shutdown complete")
}

// Close stops background work, then closes the database and Redis.
func (app *App) Close() {
	if app.Scheduler != nil {
		app.Scheduler.Stop()
	}
	// Pending notifications get their timeout to finish
	if app.Notifications != nil {
		app.Notifications.Stop()
	}

	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
