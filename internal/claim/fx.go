package claim

import (
	"github.com/smallbiznis/coverdesk/internal/claim/domain"
	"github.com/smallbiznis/coverdesk/internal/claim/repository"
	"github.com/smallbiznis/coverdesk/internal/claim/service"
	"go.uber.org/fx"
)

var Module = fx.Module("claim.service",
	fx.Provide(repository.Provide),
	fx.Provide(
		fx.Annotate(service.NewNotifier, fx.As(new(domain.StatusNotifier))),
	),
	fx.Provide(service.New),
)
