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

package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/api/types/metrics"
	"github.com/rulego/casflow/cas"
)

// FlowControllerContainer wraps the flow controller of an aggregate: it
// presents each CAS in the view and abstraction the controller expects and
// times every call into the controller.
//
// FlowControllerContainer 流程控制器容器
type FlowControllerContainer struct {
	key          string
	controller   types.FlowController
	sofaAware    bool
	casInterface string
	info         *types.ComponentInfo
	metrics      *metrics.EngineMetrics
}

// NewFlowControllerContainer instantiates and initializes the controller declared by spec
func NewFlowControllerContainer(key string, spec *types.FlowControllerSpecifier, ctx *flowControllerContext, sofaMappings map[string]string) (*FlowControllerContainer, error) {
	registry := ctx.config.ComponentsRegistry
	if registry == nil {
		registry = Registry
	}
	component, err := registry.NewComponent(spec.Implementation)
	if err != nil {
		if errors.Is(err, types.ErrComponentNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrFlowControllerNotFound, spec.Implementation)
		}
		return nil, err
	}
	controller, ok := component.(types.FlowController)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFlowController, spec.Implementation)
	}
	if err := controller.Init(ctx, processGlobalPlaceholders(ctx.config, spec.Configuration)); err != nil {
		return nil, fmt.Errorf("init flow controller %s: %w", key, err)
	}
	return &FlowControllerContainer{
		key:          key,
		controller:   controller,
		sofaAware:    spec.SofaAware,
		casInterface: controller.RequiredCasInterface(),
		info:         &types.ComponentInfo{Key: key, SofaMappings: sofaMappings},
		metrics:      ctx.config.Metrics,
	}, nil
}

// Key flow controller key
func (c *FlowControllerContainer) Key() string {
	return c.key
}

// Controller the wrapped controller
func (c *FlowControllerContainer) Controller() types.FlowController {
	return c.controller
}

// ComputeFlow returns the flow of a CAS entering the aggregate
func (c *FlowControllerContainer) ComputeFlow(in types.CAS) (*FlowContainer, error) {
	start := time.Now()
	defer c.elapsed(start)
	view, err := viewFor(in, c.info, c.sofaAware)
	if err != nil {
		return nil, err
	}
	defer in.SetCurrentComponent(nil)
	flow, err := c.controller.ComputeFlow(cas.Adapt(view, c.casInterface))
	if err != nil {
		return nil, err
	}
	return &FlowContainer{flow: flow, container: c}, nil
}

func (c *FlowControllerContainer) AddAnalysisEngines(keys []string) error {
	return c.controller.AddAnalysisEngines(keys)
}

func (c *FlowControllerContainer) RemoveAnalysisEngines(keys []string) error {
	return c.controller.RemoveAnalysisEngines(keys)
}

func (c *FlowControllerContainer) CollectionProcessComplete() error {
	return c.controller.CollectionProcessComplete()
}

func (c *FlowControllerContainer) Destroy() {
	c.controller.Destroy()
}

func (c *FlowControllerContainer) elapsed(start time.Time) {
	if c.metrics != nil {
		c.metrics.AddFlowTime(time.Since(start))
	}
}

// FlowContainer wraps a Flow so that new CASes reach it in the same view and
// abstraction as the CAS it was computed for.
type FlowContainer struct {
	flow      types.Flow
	container *FlowControllerContainer
}

// Next returns the next step of the CAS
func (f *FlowContainer) Next() (types.Step, error) {
	start := time.Now()
	defer f.container.elapsed(start)
	return f.flow.Next()
}

// NewCasProduced returns the flow of a CAS produced by the delegate producedBy
func (f *FlowContainer) NewCasProduced(produced types.CAS, producedBy string) (*FlowContainer, error) {
	start := time.Now()
	defer f.container.elapsed(start)
	view, err := viewFor(produced, f.container.info, f.container.sofaAware)
	if err != nil {
		return nil, err
	}
	defer produced.SetCurrentComponent(nil)
	flow, err := f.flow.NewCasProduced(cas.Adapt(view, f.container.casInterface), producedBy)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, fmt.Errorf("%w: nil flow for CAS produced by %s", types.ErrCasMultiplierNotSupported, producedBy)
	}
	return &FlowContainer{flow: flow, container: f.container}, nil
}

func (f *FlowContainer) ContinueOnFailure(failedKey string, err error) bool {
	return f.flow.ContinueOnFailure(failedKey, err)
}

func (f *FlowContainer) Aborted() {
	f.flow.Aborted()
}
