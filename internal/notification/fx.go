package notification

import (
	"github.com/smallbiznis/coverdesk/internal/notification/domain"
	"github.com/smallbiznis/coverdesk/internal/notification/repository"
	"github.com/smallbiznis/coverdesk/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(
		fx.Annotate(service.NewDispatcher, fx.As(new(domain.Dispatcher))),
	),
	fx.Provide(service.NewInbox),
)
