package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"grimoire-api/internal/core/auth"
	"grimoire-api/internal/core/cache"
	"grimoire-api/internal/core/config"
	"grimoire-api/internal/core/database"
	"grimoire-api/internal/core/logger"
	"grimoire-api/internal/core/server"
	"grimoire-api/internal/domain"
	"grimoire-api/internal/media/images"
	"grimoire-api/internal/repo"
	"grimoire-api/internal/service"
	"grimoire-api/internal/transport/http/handler"
	"grimoire-api/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}

	var log *zap.Logger
	var cleanup func()
	if cfg.Log.File != "" {
		log, cleanup = logger.NewWithRotate(cfg.Log.Level, cfg.Log.JSON,
			cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress)
	} else {
		log, cleanup = logger.New(cfg.Log.Level, cfg.Log.JSON)
	}
	defer cleanup()

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		log.Fatal("db open", zap.Error(err))
	}
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(&domain.User{}, &domain.Book{}, &domain.Rating{}); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.TTLHours) * time.Hour,
	}

	storage, err := images.NewStorage(cfg.Media.Dir)
	if err != nil {
		log.Fatal("image storage", zap.Error(err))
	}
	proc := images.NewProcessor(storage, images.Options{
		MaxBytes:  int64(cfg.Media.MaxUploadMB) << 20,
		MaxWidth:  cfg.Media.MaxWidth,
		MaxHeight: cfg.Media.MaxHeight,
		Quality:   cfg.Media.JPEGQuality,
	}, log)

	var c *cache.Cache
	if cfg.Redis.Enabled {
		c = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		log.Info("redis cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	authSvc := service.NewAuthService(repo.NewUserRepo(db), jwter, log)
	bookSvc := service.NewBookService(repo.NewBookRepo(db), storage, c,
		service.BookServiceOptions{DeleteImageOnDelete: cfg.Media.DeleteImageOnBookDelete}, log)

	r := router.NewAPIEngine(router.Deps{
		Log:     log,
		Cfg:     cfg,
		JWTer:   jwter,
		Auth:    handler.NewAuthHandler(authSvc),
		Books:   handler.NewBookHandler(bookSvc, proc, cfg.Media.URLPrefix),
		MediaFS: cfg.Media.Dir,
	})

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api start FAILED", zap.Error(err))
		}
	}()
	log.Info("api started", zap.String("addr", addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("api stopped gracefully")
}
