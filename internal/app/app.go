package app

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codehive/collab-server/internal/module/collaboration"
	"github.com/codehive/collab-server/internal/module/presence"
	"github.com/codehive/collab-server/internal/module/workspace"
	sharedcache "github.com/codehive/collab-server/internal/shared/cache"
	"github.com/codehive/collab-server/internal/shared/config"
	"github.com/codehive/collab-server/internal/shared/database"
	"github.com/codehive/collab-server/internal/shared/logger"
	"github.com/codehive/collab-server/internal/shared/metrics"
	"github.com/codehive/collab-server/internal/shared/middleware"
)

// App represents the application.
type App struct {
	config    *config.Config
	db        *gorm.DB
	redis     *redis.Client
	router    *gin.Engine
	logger    *logger.Logger
	zapLogger *zap.Logger
	metrics   *metrics.Metrics

	// Presence infrastructure
	cursorStore presence.Store
	sweeper     *presence.Sweeper

	// Modules
	workspaceHandler *workspace.Handler
	collabHandler    *collaboration.Handler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	zapLog, err := logger.NewZapLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init zap logger: %w", err)
	}

	app := &App{
		config:    cfg,
		logger:    log,
		zapLogger: zapLog,
		metrics:   metrics.New("collab"),
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	app.db = db

	if err := app.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	// Redis is optional: without it the presence store falls back to
	// in-process memory and event fan-out is disabled.
	if cfg.Redis.Address != "" {
		redisClient, err := sharedcache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Warn("redis connection failed, using in-memory presence", logger.Err(err))
		} else {
			app.redis = redisClient
		}
	}

	app.router = app.setupRouter()

	if err := app.initModules(); err != nil {
		return nil, fmt.Errorf("init modules: %w", err)
	}

	app.registerRoutes()
	app.startSweeper()

	return app, nil
}

// migrate keeps the schema in sync with the model definitions.
func (a *App) migrate() error {
	return a.db.AutoMigrate(
		&workspace.Workspace{},
		&workspace.Member{},
		&collaboration.Session{},
		&collaboration.Participant{},
		&collaboration.Event{},
		&collaboration.CodeComment{},
	)
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.Metrics(a.metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// initModules initializes all application modules.
func (a *App) initModules() error {
	// Workspace module
	workspaceRepo := workspace.NewRepository(a.db)
	workspaceService := workspace.NewService(workspaceRepo, a.zapLogger)
	a.workspaceHandler = workspace.NewHandler(workspaceService)

	// Presence store: Redis-backed when available so cursors survive
	// process restarts and are shared across instances.
	if a.redis != nil {
		a.cursorStore = presence.NewRedisStore(a.redis, a.config.Collaboration.CursorTTL)
	} else {
		a.cursorStore = presence.NewMemoryStore(a.config.Collaboration.CursorTTL)
	}

	var publisher collaboration.Publisher = collaboration.NopPublisher{}
	if a.redis != nil {
		publisher = collaboration.NewRedisPublisher(a.redis)
	}

	// Collaboration module
	collabRepo := collaboration.NewRepository(a.db)
	collabService := collaboration.NewService(
		collabRepo,
		a.cursorStore,
		publisher,
		a.zapLogger,
		a.metrics,
	)
	a.collabHandler = collaboration.NewHandler(collabService, a.config.Collaboration.EventFetchLimit)

	return nil
}

// registerRoutes registers routes for all modules.
func (a *App) registerRoutes() {
	v1 := a.router.Group("/api/v1")
	v1.Use(middleware.Auth(middleware.NewTokenValidator(a.config.Auth.JWTSecret)))

	a.workspaceHandler.RegisterRoutes(v1)
	a.collabHandler.RegisterRoutes(v1)
}

// startSweeper starts the background stale-cursor sweeper.
func (a *App) startSweeper() {
	a.sweeper = presence.NewSweeper(
		a.cursorStore,
		a.config.Collaboration.SweepInterval,
		a.zapLogger,
		a.metrics,
	)
	a.sweeper.Start()
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop stops the application and releases resources.
func (a *App) Stop() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	if a.zapLogger != nil {
		_ = a.zapLogger.Sync()
	}

	if a.redis != nil {
		_ = sharedcache.Close(a.redis)
	}

	if a.db != nil {
		_ = database.Close(a.db)
	}
}
