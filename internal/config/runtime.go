package config

import (
	"log/slog"
	"time"

	"github.com/shaiso/flowforge/internal/nodes"
)

// Registry возвращает реестр типов узлов: симуляцию в демо-режиме,
// иначе встроенные типы с клиентом LLM из OPENAI_*.
func (c *Config) Registry(logger *slog.Logger) *nodes.Registry {
	if c.Demo.Enabled {
		return nodes.DemoRegistry(nodes.SimulationConfig{
			MinDelay: c.Demo.MinDelay,
			MaxDelay: c.Demo.MaxDelay,
		})
	}
	return nodes.DefaultRegistry(nodes.Options{
		AI:     nodes.NewOpenAIClient(c.OpenAIAPIKey, c.OpenAIBaseURL),
		Logger: logger,
	})
}

// Faults возвращает стратегию внедрения сбоев.
// Сбои внедряются только в демо-режиме с DEMO_FAILURE_RATE > 0.
func (c *Config) Faults() nodes.FaultInjector {
	if !c.Demo.Enabled || c.Demo.FailureRate <= 0 {
		return nodes.NeverFail{}
	}
	return nodes.NewProbability(c.Demo.FailureRate, time.Now().UnixNano())
}
