package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/time/rate"

	"github.com/convoline/bridge/internal"
	"github.com/convoline/bridge/internal/app"
	"github.com/convoline/bridge/internal/bridge"
	"github.com/convoline/bridge/internal/config"
	"github.com/convoline/bridge/internal/handler"
	bridge_middleware "github.com/convoline/bridge/internal/middleware"
	"github.com/convoline/bridge/internal/report"
	"github.com/convoline/bridge/internal/source"
	"github.com/convoline/bridge/internal/utils"
)

func main() {
	log.Info(fmt.Sprintf("Bridge %s is running", internal.BridgeVersionRevision))
	config.LoadConfig()
	app.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder bridge.Recorder
	if config.Config.WebhookURL != "" {
		ring := report.NewRingCollector(config.Config.ReportBufferSize)
		sender := report.NewWebhookSender(config.Config.WebhookURL)
		collector := report.NewCollector(ring, sender, time.Duration(config.Config.ReportFlushIntervalMs)*time.Millisecond)
		go collector.Run(ctx)
		recorder = ring
		log.Infof("delivery reports enabled, webhook: %s", config.Config.WebhookURL)
	}

	b := bridge.New(recorder)
	defer b.Cleanup()

	var healthTarget app.HealthChecker = b
	switch config.Config.Source {
	case "redis":
		src, err := source.NewRedisSource(config.Config.RedisURI)
		if err != nil {
			log.Fatalf("failed to create redis source: %v", err)
		}
		defer func() {
			if err := src.Close(); err != nil {
				log.Errorf("failed to close source: %v", err)
			}
		}()
		b.ConnectSource(src)
		healthTarget = src
		app.SetBridgeInfo(config.Config.BridgeName, "redis")
		log.Info("Using Redis source")
	case "websocket":
		src, err := source.NewWebsocketSource(config.Config.SourceURL)
		if err != nil {
			log.Fatalf("failed to create websocket source: %v", err)
		}
		defer func() {
			if err := src.Close(); err != nil {
				log.Errorf("failed to close source: %v", err)
			}
		}()
		b.ConnectSource(src)
		healthTarget = src
		app.SetBridgeInfo(config.Config.BridgeName, "websocket")
		log.Info("Using WebSocket source")
	default:
		app.SetBridgeInfo(config.Config.BridgeName, "none")
		log.Info("No source attached, events are accepted via the inject endpoint only")
	}

	healthManager := app.NewHealthManager()
	healthManager.UpdateHealthStatus(healthTarget)
	go healthManager.StartHealthMonitoring(healthTarget)

	extractor, err := utils.NewRealIPExtractor(config.Config.TrustedProxyRanges)
	if err != nil {
		log.Warnf("failed to create realIPExtractor: %v, using defaults", err)
		extractor, _ = utils.NewRealIPExtractor([]string{})
	}

	mux := http.NewServeMux()
	mux.Handle("/health", http.HandlerFunc(healthManager.HealthHandler))
	mux.Handle("/ready", http.HandlerFunc(healthManager.HealthHandler))
	mux.Handle("/version", http.HandlerFunc(app.VersionHandler))
	mux.Handle("/metrics", promhttp.Handler())
	if config.Config.PprofEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
	}
	go func() {
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", config.Config.MetricsPort), mux))
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		Skipper:           nil,
		DisableStackAll:   true,
		DisablePrintStack: false,
	}))
	e.Use(app.LogrusLoggerMiddleware())
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			if app.SkipRateLimitsByToken(c.Request()) || c.Path() != "/bridge/event" {
				return true
			}
			return false
		},
		Store: middleware.NewRateLimiterMemoryStore(rate.Limit(config.Config.RPSLimit)),
	}))
	e.Use(app.ConnectionsLimitMiddleware(bridge_middleware.NewConnectionLimiter(config.Config.ConnectionsLimit, extractor), func(c echo.Context) bool {
		if app.SkipRateLimitsByToken(c.Request()) || c.Path() != "/bridge/events" {
			return true
		}
		return false
	}))

	if config.Config.CorsEnable {
		corsConfig := middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{echo.GET, echo.POST, echo.OPTIONS},
			AllowHeaders:     []string{"DNT", "X-CustomHeader", "Keep-Alive", "User-Agent", "X-Requested-With", "If-Modified-Since", "Cache-Control", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           86400,
		})
		e.Use(corsConfig)
	}

	h := handler.NewHandler(b, time.Duration(config.Config.HeartbeatInterval)*time.Second, config.Config.SessionBufferSize)

	e.GET("/bridge/events", h.EventSubscriptionHandler)
	e.POST("/bridge/event", h.EmitEventHandler)
	e.GET("/bridge/stats", h.StatsHandler)

	var existedPaths []string
	for _, r := range e.Routes() {
		existedPaths = append(existedPaths, r.Path)
	}
	p := prometheus.NewPrometheus("http", func(c echo.Context) bool {
		return !slices.Contains(existedPaths, c.Path())
	})
	e.Use(p.HandlerFunc)

	go func() {
		if config.Config.SelfSignedTLS {
			cert, key, err := utils.GenerateSelfSignedCertificate()
			if err != nil {
				log.Fatalf("failed to generate self signed certificate: %v", err)
			}
			if err := e.StartTLS(fmt.Sprintf(":%v", config.Config.Port), cert, key); err != nil && err != http.ErrServerClosed {
				log.Fatal(err)
			}
		} else {
			if err := e.Start(fmt.Sprintf(":%v", config.Config.Port)); err != nil && err != http.ErrServerClosed {
				log.Fatal(err)
			}
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown error: %v", err)
	}
}
