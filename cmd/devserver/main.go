// Command devserver serves the Slack endpoint over plain HTTP for local
// testing, running jobs in-process instead of through Lambda.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"

	"slack-roaster/handler"
	"slack-roaster/internal/app"
	"slack-roaster/internal/config"
)

type requestHandler interface {
	HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "err", err)
		os.Exit(1)
	}
	h, jobs, err := a.LocalHandler()
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.DevAddr,
		Handler:           newRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("dev server listening", "addr", cfg.DevAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("dev server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("dev server shutdown failed", "err", err)
	}
	jobs.Wait()
}

func newRouter(h requestHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/slack/commands", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp := h.HandleRequest(c.Request.Context(), toProxyRequest(c.Request, body))
		writeProxyResponse(c, resp)
	})
	return r
}

func toProxyRequest(r *http.Request, body []byte) events.APIGatewayProxyRequest {
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	return events.APIGatewayProxyRequest{
		HTTPMethod:        r.Method,
		Path:              r.URL.Path,
		Headers:           headers,
		MultiValueHeaders: r.Header,
		Body:              string(body),
	}
}

func writeProxyResponse(c *gin.Context, resp events.APIGatewayProxyResponse) {
	body, err := handler.DecodeResponseBody(resp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	c.Data(resp.StatusCode, resp.Headers["Content-Type"], body)
}
