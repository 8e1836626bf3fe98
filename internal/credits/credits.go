// Package credits holds the token-to-credit conversion policy. All credit
// arithmetic is fixed-point with four fractional digits; storage keeps
// integer ten-thousandths of a credit ("units") so both persistence backends
// can use native atomic increments.
package credits

import "github.com/shopspring/decimal"

// Scale is the number of fractional digits carried by a credit amount.
const Scale = 4

// DefaultTokensPerCredit is the fallback conversion ratio when settings are
// unreadable.
const DefaultTokensPerCredit = 1000

// TokensToCredits converts a token count to credits, rounding up at four
// decimal places. Rounding up is load-bearing: the operator must never
// under-charge due to rounding.
func TokensToCredits(tokens int64, tokensPerCredit int64) decimal.Decimal {
	if tokens <= 0 {
		return decimal.Zero
	}
	if tokensPerCredit <= 0 {
		tokensPerCredit = DefaultTokensPerCredit
	}
	// Exact integer ceiling; no intermediate binary floating point.
	units := (tokens*10_000 + tokensPerCredit - 1) / tokensPerCredit
	return FromUnits(units)
}

// CreditsToTokens converts credits to the token count they buy, rounding up
// so that charging for the result never comes out below the original amount.
func CreditsToTokens(amount decimal.Decimal, tokensPerCredit int64) int64 {
	if tokensPerCredit <= 0 {
		tokensPerCredit = DefaultTokensPerCredit
	}
	return amount.Mul(decimal.NewFromInt(tokensPerCredit)).Ceil().IntPart()
}

// EstimateMaxTokens is the pre-flight token estimate for a query: roughly
// four characters per token for the query itself, a fixed system prompt,
// one retrieved chunk per k, and an average response. Used only for the
// pre-check gate, never for final charging.
func EstimateMaxTokens(queryLength, k, maxTokensPerQuery int) int64 {
	estimated := queryLength/4 + 100 + 200*k + 500
	if maxTokensPerQuery > 0 && estimated > maxTokensPerQuery {
		estimated = maxTokensPerQuery
	}
	return int64(estimated)
}

// EstimateCreditsNeeded converts the pre-flight token estimate to credits.
func EstimateCreditsNeeded(queryLength, k int, tokensPerCredit int64, maxTokensPerQuery int) decimal.Decimal {
	return TokensToCredits(EstimateMaxTokens(queryLength, k, maxTokensPerQuery), tokensPerCredit)
}

// FromUnits converts integer ten-thousandths to a decimal credit amount.
func FromUnits(units int64) decimal.Decimal {
	return decimal.New(units, -Scale)
}

// UnitsCeil converts a credit amount to units, rounding up. Used for debits
// so fractional dust is charged, never given away.
func UnitsCeil(amount decimal.Decimal) int64 {
	return amount.Shift(Scale).Ceil().IntPart()
}

// UnitsFloor converts a credit amount to units, rounding down. Used for
// credit grants.
func UnitsFloor(amount decimal.Decimal) int64 {
	return amount.Shift(Scale).Floor().IntPart()
}
