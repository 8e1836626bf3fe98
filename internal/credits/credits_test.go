package credits

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensToCredits(t *testing.T) {
	tests := []struct {
		name   string
		tokens int64
		ratio  int64
		want   string
	}{
		{"exact multiple", 2500, 1000, "2.5"},
		{"zero tokens", 0, 1000, "0"},
		{"negative tokens", -5, 1000, "0"},
		{"single token rounds up", 1, 1000, "0.001"},
		{"sub-unit rounds up", 1, 30000, "0.0001"},
		{"one credit", 1000, 1000, "1"},
		{"non-divisible rounds up", 1001, 1000, "1.001"},
		{"odd ratio rounds up", 100, 3, "33.3334"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokensToCredits(tt.tokens, tt.ratio)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s want %s", got, tt.want)
		})
	}
}

func TestRoundTripNeverUndercharges(t *testing.T) {
	// tokensToCredits(creditsToTokens(c)) >= c for all c: the rounding
	// direction must never leak revenue.
	ratios := []int64{1, 3, 250, 1000, 4096}
	for _, ratio := range ratios {
		for units := int64(1); units < 50_000; units += 317 {
			c := FromUnits(units)
			back := TokensToCredits(CreditsToTokens(c, ratio), ratio)
			require.True(t, back.GreaterThanOrEqual(c),
				"ratio=%d c=%s back=%s", ratio, c, back)
		}
	}
}

func TestEstimateMaxTokens(t *testing.T) {
	// 0.25*queryLength + 100 + 200*k + 500
	assert.Equal(t, int64(1400), EstimateMaxTokens(0, 4, 4000))
	assert.Equal(t, int64(1500), EstimateMaxTokens(400, 4, 4000))
	// Capped at the configured limit.
	assert.Equal(t, int64(4000), EstimateMaxTokens(100_000, 10, 4000))
	// No cap configured.
	assert.Equal(t, int64(25600), EstimateMaxTokens(100_000, 0, 0))
}

func TestEstimateCreditsNeeded(t *testing.T) {
	got := EstimateCreditsNeeded(400, 4, 1000, 4000)
	assert.True(t, got.Equal(decimal.RequireFromString("1.5")), "got %s", got)
}

func TestUnitsRounding(t *testing.T) {
	d := decimal.RequireFromString("2.50001")
	assert.Equal(t, int64(25001), UnitsCeil(d))
	assert.Equal(t, int64(25000), UnitsFloor(d))
	assert.True(t, FromUnits(25000).Equal(decimal.RequireFromString("2.5")))
}
