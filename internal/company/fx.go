package company

import (
	"github.com/smallbiznis/coverdesk/internal/company/domain"
	"github.com/smallbiznis/coverdesk/internal/company/repository"
	"github.com/smallbiznis/coverdesk/internal/company/service"
	"go.uber.org/fx"
)

var Module = fx.Module("company.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(
		func(s *service.Service) domain.Service { return s },
		func(s *service.Service) domain.FiscalSource { return s },
	),
)
