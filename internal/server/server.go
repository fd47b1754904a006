package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/booth"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/camera"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/clock"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/config"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/events"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability/logger"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability/metrics"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/photo"
)

// Server exposes the booth over HTTP: trigger, live event stream, gallery.
type Server struct {
	cfg     config.Config
	log     *zap.Logger
	booth   *booth.Service
	photos  *photo.Service
	broker  *events.Broker
	driver  camera.Driver
	limiter *triggerLimiter
}

func NewServer(cfg config.Config, log *zap.Logger, clk clock.Clock, boothSvc *booth.Service, photos *photo.Service, broker *events.Broker, driver camera.Driver) *Server {
	return &Server{
		cfg:     cfg,
		log:     log.Named("server"),
		booth:   boothSvc,
		photos:  photos,
		broker:  broker,
		driver:  driver,
		limiter: newTriggerLimiter(cfg.TriggerRateLimit, cfg.TriggerRateWindow, clk),
	}
}

// NewEngine builds the gin engine with the shared middleware stack.
func NewEngine(cfg config.Config, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics", "/api/events"},
	}))
	engine.Use(metrics.GinMiddleware(httpMetrics))
	return engine
}

// RegisterAPIRoutes wires the booth endpoints.
func (s *Server) RegisterAPIRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	api.POST("/trigger", s.Trigger)
	api.GET("/events", s.StreamEvents)
	api.GET("/photos", s.ListPhotos)
	api.GET("/photos/:code", s.GetPhoto)
	api.GET("/photos/:code/image", s.GetPhotoImage)
}

// Health reports process liveness plus a best-effort camera probe.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"cameraAvailable": s.driver.IsAvailable(ctx),
	})
}

// RunHTTP starts the HTTP server under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server, engine *gin.Engine) {
		s.RegisterAPIRoutes(engine)
	}),
	fx.Invoke(RunHTTP),
)
