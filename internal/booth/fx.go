package booth

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/camera"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/config"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/events"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/photo"
)

var Module = fx.Module("booth",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			CountdownDefault:  cfg.CountdownDefault,
			SmileOffset:       cfg.SmileOffset,
			FastBuffer:        cfg.FastDeviceBuffer,
			SlowBuffer:        cfg.SlowDeviceBuffer,
			SlowLatencyCutoff: cfg.SlowLatencyCutoff,
		}
	}),
	fx.Provide(func(cfg Config, driver camera.Driver, broker *events.Broker, store *photo.Service, log *zap.Logger) *Service {
		return NewService(cfg, driver, broker, store, log)
	}),
)
