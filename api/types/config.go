/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"time"

	"github.com/rulego/casflow/api/types/metrics"
)

// Config defines the configuration shared by every engine built from one setup.
type Config struct {
	// OnDebug is called when a delegate receives (flowType=IN) or releases (flowType=OUT) a CAS.
	// - aggregate: name of the enclosing aggregate
	// - flowType: IN or OUT
	// - componentKey: delegate key
	// - cas: the CAS being processed
	// - err: error returned by the delegate, if any
	OnDebug func(aggregate string, flowType string, componentKey string, cas CAS, err error)
	// ScriptMaxExecutionTime is the maximum execution time for scripts, defaulting to 2000 milliseconds.
	ScriptMaxExecutionTime time.Duration
	// ComponentsRegistry resolves component types named by descriptors.
	ComponentsRegistry ComponentRegistry
	// Factories builds delegates from specifiers, tried most recent first.
	Factories FactoryRegistry
	// ResourceManager locates imported descriptors.
	ResourceManager ResourceManager
	// CasPool provides empty CASes to CAS multipliers.
	CasPool CasPool
	// Logger is the logging interface, defaulting to `DefaultLogger()`.
	Logger Logger
	// Properties are global properties. Component configurations can
	// reference them with ${global.propertyKey}; replacement occurs once, at Init.
	Properties map[string]string
	// Udf registers Go functions callable from JavaScript components.
	Udf map[string]interface{}
	// Aspects run around every delegate invocation.
	Aspects []Aspect
	// Metrics collects engine counters, nil disables collection.
	Metrics *metrics.EngineMetrics
}

// RegisterUdf registers a custom function callable from scripts.
func (c *Config) RegisterUdf(name string, value interface{}) {
	if c.Udf == nil {
		c.Udf = make(map[string]interface{})
	}
	c.Udf[name] = value
}

// NewConfig creates a new Config with default values and applies the provided options.
func NewConfig(opts ...Option) Config {
	c := &Config{
		ScriptMaxExecutionTime: time.Millisecond * 2000,
		Logger:                 DefaultLogger(),
		Properties:             make(map[string]string),
	}

	for _, opt := range opts {
		_ = opt(c)
	}
	return *c
}
