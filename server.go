package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"MaizeAIBackend/auth"
	"MaizeAIBackend/config"
	"MaizeAIBackend/database"
	"MaizeAIBackend/detect"
	"MaizeAIBackend/handlers"
	"MaizeAIBackend/middleware"
	"MaizeAIBackend/retry"
	"MaizeAIBackend/scan"
	"MaizeAIBackend/session"
	"MaizeAIBackend/storage"
)

func serve(ctx context.Context) error {
	logger.Info("starting", zap.Stringer("config", cfg))

	db, err := database.Init(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	revoked, closeRevoked, err := newRevocationList(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeRevoked()

	store, err := storage.NewOSStore(cfg.Storage.UploadDir, cfg.Server.BaseURL)
	if err != nil {
		return err
	}

	users := database.NewUserStore(db)
	diseases := database.NewDiseaseStore(db)
	scans := database.NewScanStore(db)
	sessions := session.NewManager(users, scans, cfg.Auth.TokenTTL, logger.Named("session"))
	tokens := middleware.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	h := &handlers.Handler{
		Accounts:  auth.NewService(users, retry.LinearPolicy(cfg.Signup.MaxAttempts, cfg.Signup.Backoff), logger.Named("auth")),
		Tokens:    tokens,
		Revoked:   revoked,
		Sessions:  sessions,
		Users:     users,
		Diseases:  diseases,
		Scans:     scans,
		Approvals: database.NewApprovalStore(db),
		Stats:     database.NewStatsStore(db),
		Workflow:  scan.NewWorkflow(store, newDetector(cfg.Detector), diseases, scans, logger.Named("scan")),
		Store:     store,
		Log:       logger,
	}

	router := mux.NewRouter()

	// Serve uploaded images (scans, avatars)
	router.PathPrefix(storage.PublicPrefix).Handler(http.StripPrefix(storage.PublicPrefix, http.FileServer(afero.NewHttpFs(store.Fs()))))

	h.Routes(router, middleware.NewAuthenticator(tokens, revoked, sessions, logger.Named("auth")))

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerMinute)
	go limiter.Run(ctx)
	go sessions.Run(ctx)

	router.Use(middleware.Logging(logger.Named("http")))
	router.Use(limiter.Middleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders: []string{
			"Link",
			"Location",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRevocationList uses redis when REDIS_ADDR is set and memory otherwise.
func newRevocationList(ctx context.Context, rc config.RedisConfig) (session.RevocationList, func(), error) {
	if rc.Addr == "" {
		logger.Warn("REDIS_ADDR not set, revoked tokens are kept in memory")
		return session.NewMemoryRevocations(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Info("connected to redis", zap.String("addr", rc.Addr))
	return session.NewRedisRevocations(client), func() { _ = client.Close() }, nil
}

func newDetector(dc config.DetectorConfig) detect.Detector {
	if dc.Kind == "model" {
		return detect.NewModelClient(dc.ModelURL, dc.Timeout)
	}
	return detect.NewRandom(rand.New(rand.NewSource(time.Now().UnixNano())), dc.DiseaseProbability)
}
