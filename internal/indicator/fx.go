package indicator

import (
	"github.com/chartschool/chartschool/internal/indicator/repository"
	"github.com/chartschool/chartschool/internal/indicator/service"
	"go.uber.org/fx"
)

var Module = fx.Module("indicator.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
