package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teslo/internal/api"
	"teslo/internal/auth"
	"teslo/internal/config"
	"teslo/internal/files"
	"teslo/internal/gateway"
	"teslo/internal/logger"
	"teslo/internal/presence"
	"teslo/internal/seed"
	"teslo/internal/sentry"
	"teslo/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the websocket gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer sentry.Flush()
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	log := logger.Named("serve")

	// 1. Database
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// 2. Auth
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL})
	if err != nil {
		return err
	}
	authSvc := auth.NewService(store, tokens)

	// 3. Presence mirror (optional)
	var mirror presence.Mirror = presence.NopMirror{}
	if cfg.RedisAddr != "" {
		rdb, err := presence.DialRedis(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			sentry.CaptureError(err, "redis unavailable, presence mirror disabled")
		} else {
			defer closeRedis(rdb)
			mirror = presence.NewRedisMirror(rdb, cfg.PresenceTTL)
			log.Info("presence mirror enabled", zap.String("redis", cfg.RedisAddr))
		}
	}

	// 4. Gateway
	gw := gateway.New(presence.NewRegistry(), authSvc, authSvc, gateway.Options{
		AuthTimeout: cfg.WSAuthTimeout,
		Mirror:      mirror,
		SendBuffer:  cfg.WSSendBuffer,
	})

	// 5. Uploads and seed data
	uploads := files.NewUploads(cfg.UploadDir, cfg.HostAPI, cfg.MaxUploadBytes)
	if err := uploads.Init(); err != nil {
		return err
	}
	seedData, err := seed.Load()
	if err != nil {
		return err
	}

	handler := api.NewServer(store, authSvc, uploads, gw, seedData).Handler()

	serverErrors := make(chan error, 2)
	var httpServers []*http.Server

	if cfg.UseTLS() {
		log.Info("configuring HTTPS", zap.String("domain", cfg.DomainName))
		cacheDir := "certs"
		if err := os.MkdirAll(cacheDir, 0700); err != nil {
			return err
		}
		manager := &autocert.Manager{
			Cache:      autocert.DirCache(cacheDir),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.DomainName),
			Email:      cfg.Email,
		}

		httpsServer := &http.Server{
			Addr:      ":443",
			Handler:   handler,
			TLSConfig: manager.TLSConfig(),
		}
		redirectServer := &http.Server{
			Addr:    ":80",
			Handler: manager.HTTPHandler(nil),
		}
		httpServers = append(httpServers, httpsServer, redirectServer)

		go func() {
			log.Info("listening", zap.String("addr", ":443"), zap.Bool("tls", true))
			if err := httpsServer.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- err
			}
		}()
		go func() {
			log.Info("redirect server listening", zap.String("addr", ":80"))
			if err := redirectServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- err
			}
		}()
	} else {
		addr := ":" + cfg.Port
		httpServer := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		httpServers = append(httpServers, httpServer)

		go func() {
			log.Info("listening", zap.String("addr", addr), zap.Bool("tls", false))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- err
			}
		}()
	}

	// Wait for interrupt or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case runErr = <-serverErrors:
		sentry.CaptureError(runErr, "server error, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not covered by Shutdown.
	gw.CloseAll()
	for _, srv := range httpServers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
	}

	log.Info("server shutdown complete")
	return runErr
}

func closeRedis(rdb *redis.Client) {
	if err := rdb.Close(); err != nil {
		logger.Warn("redis close", zap.Error(err))
	}
}
