package guardrail

import (
	"testing"
	"time"

	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testLimits() config.GuardrailConfig {
	return config.GuardrailConfig{
		MaxSteps:    5,
		MaxLLMCalls: 5,
		MaxTokens:   4000,
		Timeout:     30 * time.Second,
	}
}

func TestTokenLimitAbortsOnFirstExcess(t *testing.T) {
	clk := &clock.Fake{Current: time.Unix(1700000000, 0).UTC()}
	c := NewController(testLimits(), clk)

	require.NoError(t, c.RecordTokens(4000))

	err := c.RecordTokens(1)
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	require.Equal(t, LimitTokens, abort.Limit)

	// The abort sticks for the rest of the run.
	require.ErrorAs(t, c.RecordStep(), &abort)
	require.Equal(t, LimitTokens, abort.Limit)

	result := c.Result()
	require.Equal(t, int64(4001), result.Tokens)
	require.NotNil(t, result.Aborted)
}

func TestStepLimit(t *testing.T) {
	clk := &clock.Fake{Current: time.Unix(1700000000, 0).UTC()}
	c := NewController(testLimits(), clk)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.RecordStep())
	}
	err := c.RecordStep()
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	require.Equal(t, LimitSteps, abort.Limit)
}

func TestLLMCallLimitCountsTokensToo(t *testing.T) {
	clk := &clock.Fake{Current: time.Unix(1700000000, 0).UTC()}
	c := NewController(testLimits(), clk)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.RecordLLMCall(100))
	}
	err := c.RecordLLMCall(100)
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	require.Equal(t, LimitLLMCalls, abort.Limit)
	require.Equal(t, int64(600), c.Result().Tokens)
}

func TestTimeoutUsesInjectedClock(t *testing.T) {
	clk := &clock.Fake{Current: time.Unix(1700000000, 0).UTC()}
	c := NewController(testLimits(), clk)

	require.NoError(t, c.RecordStep())
	clk.Advance(29 * time.Second)
	require.NoError(t, c.Check())

	clk.Advance(2 * time.Second)
	err := c.Check()
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	require.Equal(t, LimitTimeout, abort.Limit)
	require.GreaterOrEqual(t, c.Result().Elapsed, 31*time.Second)
}

func TestCreditCeilingAbortsProjectedOverspend(t *testing.T) {
	clk := &clock.Fake{Current: time.Unix(1700000000, 0).UTC()}
	c := NewController(testLimits(), clk).
		WithCreditCeiling(decimal.NewFromInt(2), 1000)

	// 2 credits buy 2000 tokens at 1000 tokens per credit.
	require.NoError(t, c.RecordTokens(2000))

	err := c.RecordTokens(1)
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	require.Equal(t, LimitCredits, abort.Limit)
}

func TestZeroLimitsDisableChecks(t *testing.T) {
	clk := &clock.Fake{Current: time.Unix(1700000000, 0).UTC()}
	c := NewController(config.GuardrailConfig{}, clk)

	require.NoError(t, c.RecordTokens(1_000_000))
	for i := 0; i < 100; i++ {
		require.NoError(t, c.RecordStep())
	}
	clk.Advance(time.Hour)
	require.NoError(t, c.Check())
}
