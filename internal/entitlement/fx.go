package entitlement

import (
	"github.com/chartschool/chartschool/internal/entitlement/bulk"
	"github.com/chartschool/chartschool/internal/entitlement/repository"
	"github.com/chartschool/chartschool/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(bulk.NewRunner),
)
