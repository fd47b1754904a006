package photo

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/clock"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/config"
)

var Module = fx.Module("photo",
	fx.Provide(NewRepository),
	fx.Provide(func(repo Repository, genID *snowflake.Node, clk clock.Clock, log *zap.Logger, cfg config.Config) (*Service, error) {
		return NewService(repo, genID, clk, log, cfg.PhotoDir)
	}),
)
