package guardrail

import (
	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/config"
	"go.uber.org/fx"
)

// Factory mints a controller per invocation with the limits in effect at
// that moment, so config hot reloads apply to new runs only.
type Factory struct {
	holder *config.GuardrailConfigHolder
	clock  clock.Clock
}

func NewFactory(holder *config.GuardrailConfigHolder, clk clock.Clock) *Factory {
	return &Factory{holder: holder, clock: clk}
}

func (f *Factory) New() *Controller {
	return NewController(f.holder.Get(), f.clock)
}

func (f *Factory) Limits() config.GuardrailConfig {
	return f.holder.Get()
}

var Module = fx.Module("guardrail",
	fx.Provide(NewFactory),
)
