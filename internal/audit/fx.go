package audit

import (
	"github.com/chartschool/chartschool/internal/audit/repository"
	"github.com/chartschool/chartschool/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
