// Package guardrail bounds a single agent invocation. The controller is the
// authority on runaway runs; the wallet stays the authority on funds.
package guardrail

import (
	"fmt"
	"sync"
	"time"

	"github.com/ragstack/creditledger/internal/clock"
	"github.com/ragstack/creditledger/internal/config"
	"github.com/ragstack/creditledger/internal/credits"
	"github.com/shopspring/decimal"
)

// Limit names the ceiling that aborted a run.
type Limit string

const (
	LimitSteps    Limit = "max_steps"
	LimitLLMCalls Limit = "max_llm_calls"
	LimitTokens   Limit = "max_tokens"
	LimitTimeout  Limit = "timeout"
	LimitCredits  Limit = "credit_ceiling"
)

// AbortError reports the first ceiling a run crossed. Once returned, every
// further Record call on the same controller returns it again.
type AbortError struct {
	Limit  Limit
	Detail string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("guardrail_abort: %s (%s)", e.Limit, e.Detail)
}

// Result is a consumption snapshot the caller bills partial work from.
type Result struct {
	Steps    int
	LLMCalls int
	Tokens   int64
	Elapsed  time.Duration
	Aborted  *AbortError
}

// Controller tracks one invocation against its limits. Safe for concurrent
// use; an agent's tool calls may record from multiple goroutines.
type Controller struct {
	limits config.GuardrailConfig
	clock  clock.Clock

	mu       sync.Mutex
	started  time.Time
	steps    int
	llmCalls int
	tokens   int64
	// creditCeilingUnits caps projected token spend by available funds.
	// Zero disables the check.
	creditCeilingUnits int64
	unitsPerTokenRatio int64
	aborted            *AbortError
}

func NewController(limits config.GuardrailConfig, clk clock.Clock) *Controller {
	return &Controller{
		limits:  limits,
		clock:   clk,
		started: clk.Now(),
	}
}

// WithCreditCeiling aborts the run once the tokens consumed so far would
// cost more than the credits available at start.
func (c *Controller) WithCreditCeiling(available decimal.Decimal, tokensPerCredit int64) *Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creditCeilingUnits = credits.UnitsFloor(available)
	c.unitsPerTokenRatio = tokensPerCredit
	return c
}

func (c *Controller) RecordStep() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps++
	return c.check()
}

// RecordLLMCall counts one model invocation and its token consumption.
func (c *Controller) RecordLLMCall(tokens int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.llmCalls++
	c.tokens += tokens
	return c.check()
}

func (c *Controller) RecordTokens(tokens int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens += tokens
	return c.check()
}

// Check re-evaluates the ceilings without recording anything. Useful before
// starting an expensive step.
func (c *Controller) Check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.check()
}

func (c *Controller) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Result{
		Steps:    c.steps,
		LLMCalls: c.llmCalls,
		Tokens:   c.tokens,
		Elapsed:  c.clock.Now().Sub(c.started),
		Aborted:  c.aborted,
	}
}

// check holds the mutex. The first ceiling crossed wins and sticks.
func (c *Controller) check() error {
	if c.aborted != nil {
		return c.aborted
	}
	switch {
	case c.limits.MaxSteps > 0 && c.steps > c.limits.MaxSteps:
		c.aborted = &AbortError{
			Limit:  LimitSteps,
			Detail: fmt.Sprintf("%d steps, limit %d", c.steps, c.limits.MaxSteps),
		}
	case c.limits.MaxLLMCalls > 0 && c.llmCalls > c.limits.MaxLLMCalls:
		c.aborted = &AbortError{
			Limit:  LimitLLMCalls,
			Detail: fmt.Sprintf("%d llm calls, limit %d", c.llmCalls, c.limits.MaxLLMCalls),
		}
	case c.limits.MaxTokens > 0 && c.tokens > c.limits.MaxTokens:
		c.aborted = &AbortError{
			Limit:  LimitTokens,
			Detail: fmt.Sprintf("%d tokens, limit %d", c.tokens, c.limits.MaxTokens),
		}
	case c.limits.Timeout > 0 && c.clock.Now().Sub(c.started) > c.limits.Timeout:
		c.aborted = &AbortError{
			Limit:  LimitTimeout,
			Detail: fmt.Sprintf("elapsed %s, limit %s", c.clock.Now().Sub(c.started), c.limits.Timeout),
		}
	case c.creditCeilingUnits > 0 && c.projectedUnits() > c.creditCeilingUnits:
		c.aborted = &AbortError{
			Limit:  LimitCredits,
			Detail: fmt.Sprintf("projected charge exceeds %s credits available", credits.FromUnits(c.creditCeilingUnits)),
		}
	default:
		return nil
	}
	return c.aborted
}

func (c *Controller) projectedUnits() int64 {
	if c.unitsPerTokenRatio <= 0 {
		return 0
	}
	return credits.UnitsCeil(credits.TokensToCredits(c.tokens, c.unitsPerTokenRatio))
}
