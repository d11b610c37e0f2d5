package permission

import "go.uber.org/fx"

var Module = fx.Module("permission",
	fx.Provide(DefaultTable),
	fx.Provide(NewResolver),
	fx.Provide(NewEnforcer),
	fx.Provide(NewAuthorizer),
)
