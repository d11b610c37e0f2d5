package settlement

import (
	"github.com/smallbiznis/coverdesk/internal/settlement/repository"
	"github.com/smallbiznis/coverdesk/internal/settlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewOpener),
)
