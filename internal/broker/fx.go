package broker

import (
	"github.com/smallbiznis/coverdesk/internal/broker/repository"
	"github.com/smallbiznis/coverdesk/internal/broker/service"
	"go.uber.org/fx"
)

var Module = fx.Module("broker.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
