package user

import (
	"github.com/chartschool/chartschool/internal/user/repository"
	"github.com/chartschool/chartschool/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
