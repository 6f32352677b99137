//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/biz"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/conf"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/data"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/server"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, service.ProviderSet, newApp))
}
