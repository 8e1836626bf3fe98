package config

import (
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// GuardrailConfig bounds a single agent invocation. Values apply before any
// wallet charge happens; the wallet is the authority on funds, these limits
// are the authority on runaway runs.
type GuardrailConfig struct {
	MaxSteps             int           `mapstructure:"maxSteps"`
	MaxLLMCalls          int           `mapstructure:"maxLlmCalls"`
	MaxTokens            int64         `mapstructure:"maxTokens"`
	Timeout              time.Duration `mapstructure:"timeout"`
	ChargePartialOnAbort bool          `mapstructure:"chargePartialOnAbort"`
}

func DefaultGuardrailConfig() GuardrailConfig {
	return GuardrailConfig{
		MaxSteps:             5,
		MaxLLMCalls:          5,
		MaxTokens:            4000,
		Timeout:              30 * time.Second,
		ChargePartialOnAbort: true,
	}
}

// GuardrailConfigHolder hot-reloads guardrail limits from an optional
// guardrails.yml without restarting the process.
type GuardrailConfigHolder struct {
	current atomic.Value // holds GuardrailConfig
}

func NewGuardrailConfigHolder() (*GuardrailConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("guardrails")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/creditledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CREDITLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGuardrailConfig()
	v.SetDefault("guardrails.maxSteps", defaults.MaxSteps)
	v.SetDefault("guardrails.maxLlmCalls", defaults.MaxLLMCalls)
	v.SetDefault("guardrails.maxTokens", defaults.MaxTokens)
	v.SetDefault("guardrails.timeout", defaults.Timeout)
	v.SetDefault("guardrails.chargePartialOnAbort", defaults.ChargePartialOnAbort)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg GuardrailConfig
	if err := v.UnmarshalKey("guardrails", &cfg); err != nil {
		return nil, err
	}
	cfg = sanitizeGuardrailConfig(cfg)

	holder := &GuardrailConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated GuardrailConfig
		if err := v.UnmarshalKey("guardrails", &updated); err != nil {
			log.Printf("[guardrail-config] reload failed: %v", err)
			return
		}
		holder.current.Store(sanitizeGuardrailConfig(updated))
	})

	return holder, nil
}

func (h *GuardrailConfigHolder) Get() GuardrailConfig {
	return h.current.Load().(GuardrailConfig)
}

// NewStaticGuardrailHolder returns a holder pinned to cfg, with no file
// watch behind it.
func NewStaticGuardrailHolder(cfg GuardrailConfig) *GuardrailConfigHolder {
	holder := &GuardrailConfigHolder{}
	holder.current.Store(sanitizeGuardrailConfig(cfg))
	return holder
}

func sanitizeGuardrailConfig(cfg GuardrailConfig) GuardrailConfig {
	defaults := DefaultGuardrailConfig()
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaults.MaxSteps
	}
	if cfg.MaxLLMCalls <= 0 {
		cfg.MaxLLMCalls = defaults.MaxLLMCalls
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return cfg
}
