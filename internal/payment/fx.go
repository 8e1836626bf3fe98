package payment

import (
	"github.com/ragstack/creditledger/internal/payment/gateway"
	"github.com/ragstack/creditledger/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(gateway.NewClient),
	fx.Provide(service.NewService),
)
