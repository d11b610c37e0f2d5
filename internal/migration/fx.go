package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/config"
	"github.com/smallbiznis/coverdesk/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if err := Apply(conn, cfg.DBType); err != nil {
			return err
		}
		return seed.Run(conn, node, seed.Options{
			AdminUsername: cfg.BootstrapAdminUsername,
			AdminEmail:    cfg.BootstrapAdminEmail,
		}, log)
	}),
)
