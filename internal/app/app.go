package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"english_edu_backend/internal/config"
	"english_edu_backend/internal/controller"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/service"
	"english_edu_backend/pkg/configwatcher"
	"english_edu_backend/pkg/database"
	"english_edu_backend/pkg/logger"
	"english_edu_backend/pkg/monitoring"
	"english_edu_backend/pkg/security"
	"english_edu_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
}

type repositories struct {
	identity    *repository.IdentityRepository
	campus      *repository.CampusRepository
	grade       *repository.GradeRepository
	classroom   *repository.ClassroomRepository
	student     *repository.StudentRepository
	staff       *repository.StaffRepository
	group       *repository.GroupRepository
	level       *repository.LevelRepository
	question    *repository.QuestionRepository
	progress    *repository.ProgressRepository
	daily       *repository.DailyProgressRepository
	plant       *repository.PlantRepository
	testAttempt *repository.TestAttemptRepository
	analytics   *repository.AnalyticsRepository
}

type services struct {
	auth        *service.AuthService
	identity    *service.IdentityService
	catalog     *service.CatalogService
	attempt     *service.AttemptService
	progression *service.ProgressionService
	aggregator  *service.AggregatorService
	scope       *service.ScopeService
	dashboard   *service.DashboardService
}

type controllers struct {
	auth      *controller.AuthController
	learning  *controller.LearningController
	dashboard *controller.DashboardController
	admin     *controller.AdminController
	health    *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		identity:    repository.NewIdentityRepository(db),
		campus:      repository.NewCampusRepository(db),
		grade:       repository.NewGradeRepository(db),
		classroom:   repository.NewClassroomRepository(db),
		student:     repository.NewStudentRepository(db),
		staff:       repository.NewStaffRepository(db),
		group:       repository.NewGroupRepository(db),
		level:       repository.NewLevelRepository(db),
		question:    repository.NewQuestionRepository(db),
		progress:    repository.NewProgressRepository(db),
		daily:       repository.NewDailyProgressRepository(db),
		plant:       repository.NewPlantRepository(db),
		testAttempt: repository.NewTestAttemptRepository(db),
		analytics:   repository.NewAnalyticsRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client, minioClient *minio.Client) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.identity, cfg)
	s.identity = service.NewIdentityService(
		repos.identity, repos.campus, repos.grade, repos.classroom,
		repos.student, repos.staff, db,
	)
	s.catalog = service.NewCatalogService(
		repos.group, repos.level, repos.question, repos.testAttempt,
		minioClient, cfg, db,
	)
	s.progression = service.NewProgressionService(
		repos.group, repos.level, repos.progress, repos.daily,
		repos.plant, repos.testAttempt, db,
	)
	s.aggregator = service.NewAggregatorService(
		repos.analytics, repos.identity, repos.student, repos.classroom,
		repos.level, db,
	)
	s.attempt = service.NewAttemptService(
		repos.identity, repos.level, repos.question, repos.progress,
		repos.testAttempt, repos.group, s.progression, s.aggregator, db,
	)
	s.scope = service.NewScopeService(
		repos.identity, repos.staff, repos.student, repos.classroom, db,
	)
	s.dashboard = service.NewDashboardService(
		repos.identity, repos.student, repos.staff, repos.classroom,
		repos.grade, repos.campus, repos.analytics, repos.progress,
		repos.daily, repos.plant, repos.group, s.progression, s.scope,
		rdb, cfg, db,
	)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		learning:  controller.NewLearningController(s.catalog, s.attempt, s.progression, s.dashboard, s.auth),
		dashboard: controller.NewDashboardController(s.dashboard, s.scope),
		admin:     controller.NewAdminController(s.identity, s.catalog, s.aggregator, s.dashboard),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func initMinio(cfg *config.Config) *minio.Client {
	if !cfg.Storage.MinioEnabled {
		return nil
	}
	client, err := minio.New(cfg.Storage.MinioEndpoint, &minio.Options{
		Creds: credentials.NewStaticV4(cfg.Storage.MinioAccessID, cfg.Storage.MinioSecret, ""),
	})
	if err != nil {
		logger.Log.Error("Failed to initialize object storage", zap.Error(err))
		return nil
	}
	return client
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb, initMinio(cfg))
	controllers := app.initControllers(services, db, rdb)

	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("english-edu-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		go func() {
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	app.registerRoutes(router, controllers, repos, cfg)

	// Hot-reload tunables (cache TTLs, import deadline, rate limits) on
	// config file edits. Connection settings require a restart.
	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		if reloaded, ok := newCfg.(*config.Config); ok {
			app.Config.Cache = reloaded.Cache
			app.Config.Import = reloaded.Import
			app.Config.RateLimit = reloaded.RateLimit
			logger.Log.Info("Configuration reloaded")
		}
	})

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
