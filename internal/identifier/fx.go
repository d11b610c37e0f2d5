package identifier

import "go.uber.org/fx"

var Module = fx.Module("identifier",
	fx.Provide(NewGenerator),
)
