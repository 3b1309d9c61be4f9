package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"randechat/internal/handler"
	"randechat/internal/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("starting rande chat",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	gin.SetMode(a.cfg.Server.GinMode)
	router := newRouter(a)

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

func newRouter(a *app) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logging(a.logger.Named("http")))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitList(a.cfg.Server.AllowedOrigins)
	corsConfig.AllowMethods = splitList(a.cfg.Server.AllowedMethods)
	corsConfig.AllowHeaders = splitList(a.cfg.Server.AllowedHeaders)
	corsConfig.ExposeHeaders = []string{middleware.HeaderRequestID}
	router.Use(cors.New(corsConfig))

	limiter := middleware.NewKeyedRateLimiter(a.cfg.Chat.RateLimit, a.cfg.Chat.RateBurst)

	chatHandler := handler.NewChatHandler(a.chat, limiter)
	searchHandler := handler.NewSearchHandler(a.search, a.registry)
	placeHandler := handler.NewPlaceHandler(a.store)
	healthHandler := handler.NewHealthHandler(a.search, chatHandler, handler.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}, a.modelName())

	router.GET("/health", healthHandler.Health)
	router.GET("/version", healthHandler.Version)

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		// Chat endpoints
		apiV1.POST("/chat/message", chatHandler.Message)
		apiV1.POST("/chat/stream", chatHandler.Stream)
		apiV1.GET("/chat/history", chatHandler.History)
		apiV1.POST("/chat/reset", chatHandler.Reset)

		// Search endpoints
		apiV1.POST("/search", middleware.RateLimit(limiter), searchHandler.Search)
		apiV1.GET("/places/:id", searchHandler.GetPlace)
		apiV1.POST("/places/batch", placeHandler.BatchUpsert)
	}

	return router
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
