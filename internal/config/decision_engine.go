package config

import (
	"time"

	"github.com/inot-trading/core/internal/bridge"
	"github.com/inot-trading/core/internal/engine"
	"github.com/inot-trading/core/internal/fusion"
	"github.com/inot-trading/core/internal/inot"
	"github.com/inot-trading/core/internal/resilience"
)

// FusionEngineConfig translates the viper-bound FusionConfig into
// fusion.EngineConfig, the shape the Input Fusion Engine actually consumes.
func (c *FusionConfig) FusionEngineConfig() fusion.EngineConfig {
	return fusion.EngineConfig{
		SyncWindow:      time.Duration(c.SyncWindowMS) * time.Millisecond,
		BufferCap:       c.BufferCap,
		ActiveCap:       c.ActiveRingCap,
		ArchivalCap:     c.ArchivalRingCap,
		FusionInterval:  time.Duration(c.FusionIntervalMS) * time.Millisecond,
		CleanupInterval: time.Duration(c.CleanupIntervalMS) * time.Millisecond,
	}
}

// OrchestratorConfig translates INoTConfig plus the shared LLMConfig into
// inot.Config. The LLM client's credentials and endpoint live on LLMConfig
// since every LLM-calling component shares one gateway.
func (ic *INoTConfig) OrchestratorConfig(llm LLMConfig, apiKey string) inot.Config {
	return inot.Config{
		Client: inot.ClientConfig{
			Endpoint:  llm.Endpoint,
			APIKey:    apiKey,
			Model:     llm.PrimaryModel,
			MaxTokens: llm.MaxTokens,
			Timeout:   llm.GetTimeout(),
		},
		Budget: inot.BudgetConfig{
			MaxDecisionsPerDay: ic.MaxDecisionsPerDay,
			MaxCostPerDay:      ic.MaxCostPerDayUSD,
			CostPerCompletion:  ic.CostPerCompletion,
		},
		MaxAttempts: ic.MaxAttempts,
	}
}

// BreakerConfig translates ResilienceConfig into resilience.BreakerConfig
// for a dependency class identified by name (e.g. "broker", "database").
func (rc *ResilienceConfig) BreakerConfig(name string) resilience.BreakerConfig {
	return resilience.BreakerConfig{
		Name:                 name,
		FailureThreshold:     rc.FailureThreshold,
		RecoveryTimeout:      time.Duration(rc.RecoveryTimeoutMS) * time.Millisecond,
		HalfOpenMaxSuccesses: rc.HalfOpenMaxSuccesses,
	}
}

// RetryConfig translates ResilienceConfig into resilience.RetryConfig.
func (rc *ResilienceConfig) RetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts: rc.RetryMaxAttempts,
		BaseDelay:   time.Duration(rc.RetryBaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(rc.RetryMaxDelayMS) * time.Millisecond,
	}
}

// BridgeConfig assembles the Execution Bridge's Config from Risk and
// Resilience settings, per spec.md §4.6.
func (c *Config) BridgeConfig() bridge.Config {
	return bridge.Config{
		Validation: bridge.ValidationConfig{
			MaxSpreadPips:   c.Risk.MaxSpreadPips,
			MinStopDistance: 0,
		},
		Breaker: c.Resilience.BreakerConfig("broker"),
		Retry:   c.Resilience.RetryConfig(),
	}
}

// EngineConfig assembles the Decision Engine's own Config for one traded
// symbol, per spec.md §4.7. Callers iterate Trading.Symbols and call this
// once per symbol to build independent engine instances.
func (c *Config) EngineConfig(symbol string, orchestratorEnabled bool) engine.Config {
	return engine.Config{
		Symbol:          symbol,
		LoopInterval:    time.Duration(c.Trading.LoopIntervalSecs) * time.Second,
		MinConfidence:   c.Risk.MinConfidence,
		OrchestratorOn:  orchestratorEnabled,
		RiskPerTrade:    c.Risk.RiskPerTrade,
		DefaultStopPips: c.Risk.DefaultStopPips,
		SnapshotDays:    c.Memory.SnapshotLookbackDays,
	}
}
