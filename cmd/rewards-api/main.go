package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/kidcode-rewards-api/api/swagger"
	"github.com/noah-isme/kidcode-rewards-api/internal/handler"
	"github.com/noah-isme/kidcode-rewards-api/internal/middleware"
	"github.com/noah-isme/kidcode-rewards-api/internal/models"
	"github.com/noah-isme/kidcode-rewards-api/internal/repository"
	"github.com/noah-isme/kidcode-rewards-api/internal/service"
	"github.com/noah-isme/kidcode-rewards-api/pkg/auth"
	"github.com/noah-isme/kidcode-rewards-api/pkg/cache"
	"github.com/noah-isme/kidcode-rewards-api/pkg/config"
	"github.com/noah-isme/kidcode-rewards-api/pkg/database"
	"github.com/noah-isme/kidcode-rewards-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/kidcode-rewards-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/kidcode-rewards-api/pkg/middleware/requestid"
)

// @title KidCode Rewards API
// @version 1.0.0
// @description XP, badges, streaks, lesson gating and leaderboards for the KidCode learning platform.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	table, err := config.LoadRewardTable(cfg.Rewards.TablePath)
	if err != nil {
		logr.Fatal("failed to load reward table", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	loc := cfg.Rewards.Location()
	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	dependents := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		defer redisClient.Close()
		redisRepo := repository.NewCacheRepository(redisClient, "rewards")
		cacheRepo = redisRepo
		dependents["redis"] = handler.PingFunc(redisRepo.Ping)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Leaderboard.CacheTTL, logr)

	ledgerRepo := repository.NewLedgerRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)

	calculator := service.NewXPCalculator(table)
	leaderboardSvc := service.NewLeaderboardService(repository.NewLeaderboardRepository(db), cacheSvc, service.LeaderboardConfig{
		Limit:    cfg.Leaderboard.Limit,
		CacheTTL: cfg.Leaderboard.CacheTTL,
		Location: loc,
	}, logr)

	rewardsSvc := service.NewRewardsService(service.RewardsServiceParams{
		Ledger:      ledgerRepo,
		Activities:  repository.NewActivityRepository(db),
		Quizzes:     repository.NewQuizRepository(db),
		Badges:      badgeRepo,
		Evaluator:   service.NewBadgeEvaluator(badgeRepo, metrics, logr),
		Streaks:     service.NewStreakTracker(repository.NewStreakRepository(db), calculator, loc),
		Gate:        service.NewProgressGate(repository.NewProgressRepository(db)),
		Leaderboard: leaderboardSvc,
		Calculator:  calculator,
		Metrics:     metrics,
		Logger:      logr,
		Location:    loc,
		RecentLimit: cfg.Rewards.RecentActivityLimit,
	})

	var resets *service.PeriodResetService
	if cfg.Scheduler.Enabled {
		resets = service.NewPeriodResetService(repository.NewPeriodRepository(db), leaderboardSvc, metrics, service.PeriodResetConfig{
			CheckInterval: cfg.Scheduler.CheckInterval,
			Workers:       cfg.Scheduler.Workers,
			Retries:       cfg.Scheduler.Retries,
			Location:      loc,
		}, logr)
		resets.Start(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, dependents)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	rewardsHandler := handler.NewRewardsHandler(rewardsSvc)
	progressHandler := handler.NewProgressHandler(rewardsSvc)
	quizHandler := handler.NewQuizHandler(rewardsSvc)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardSvc)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(auth.NewVerifier(cfg.JWT)))

	student := api.Group("")
	student.Use(middleware.RequireRoles(models.RoleStudent))
	student.POST("/rewards/lesson-complete", rewardsHandler.CompleteLesson)
	student.POST("/rewards/game-complete", rewardsHandler.CompleteGame)
	student.POST("/rewards/weekly-challenge", rewardsHandler.CompleteWeeklyChallenge)
	student.POST("/rewards/daily-login", rewardsHandler.DailyLogin)
	student.GET("/rewards/progress", rewardsHandler.Progress)
	student.GET("/badges", rewardsHandler.Badges)
	student.GET("/progress", progressHandler.Status)
	student.POST("/progress", progressHandler.Update)
	student.POST("/quiz/answer", quizHandler.Answer)
	student.POST("/quiz/submit", quizHandler.Submit)

	api.GET("/leaderboard", leaderboardHandler.Get)
	api.GET("/leaderboard/me", leaderboardHandler.MyRank)
	api.GET("/leaderboard/export", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), leaderboardHandler.Export)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if resets != nil {
		resets.Stop()
	}
}
