package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/ragstack/creditledger/internal/audit"
	"github.com/ragstack/creditledger/internal/billing"
	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/config"
	"github.com/ragstack/creditledger/internal/guardrail"
	"github.com/ragstack/creditledger/internal/notifier"
	"github.com/ragstack/creditledger/internal/observability"
	"github.com/ragstack/creditledger/internal/payment"
	"github.com/ragstack/creditledger/internal/scheduler"
	"github.com/ragstack/creditledger/internal/server"
	"github.com/ragstack/creditledger/internal/settings"
	"github.com/ragstack/creditledger/internal/store"
	"github.com/ragstack/creditledger/internal/usage"
	"github.com/ragstack/creditledger/internal/wallet"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		store.Module,

		settings.Module,
		usage.Module,
		wallet.Module,
		guardrail.Module,
		payment.Module,
		audit.Module,
		notifier.Module,
		billing.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
