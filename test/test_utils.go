/*
 * Copyright 2023 The RuleGo Authors.
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

// Package test holds fixtures shared by component tests: contexts for
// initializing components outside an aggregate and scripted components.
package test

import (
	"fmt"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/cas"
)

// ComponentContext is a ComponentContext for tests
type ComponentContext struct {
	ComponentKey string
	EngineConfig types.Config
	Pool         types.CasPool
	Md           *types.ComponentMetadata
}

var _ types.ComponentContext = (*ComponentContext)(nil)

// NewComponentContext creates a context with a discarding logger and an unbounded pool
func NewComponentContext(key string) *ComponentContext {
	return &ComponentContext{
		ComponentKey: key,
		EngineConfig: types.NewConfig(types.WithLogger(types.DiscardLogger{})),
		Pool:         cas.NewPool(0),
		Md:           &types.ComponentMetadata{Name: key},
	}
}

func (c *ComponentContext) Key() string {
	return c.ComponentKey
}

func (c *ComponentContext) Config() types.Config {
	return c.EngineConfig
}

func (c *ComponentContext) Logger() types.Logger {
	return c.EngineConfig.Logger
}

func (c *ComponentContext) EmptyCas() (types.CAS, error) {
	return c.Pool.EmptyCas()
}

func (c *ComponentContext) Metadata() *types.ComponentMetadata {
	return c.Md
}

// FlowControllerContext is a FlowControllerContext for tests
type FlowControllerContext struct {
	*ComponentContext
	Aggregate   *types.ComponentMetadata
	Delegates   map[string]*types.ComponentMetadata
	Constraints *types.FlowConstraints
}

var _ types.FlowControllerContext = (*FlowControllerContext)(nil)

// NewFlowControllerContext creates a context for a fixed order of delegates
func NewFlowControllerContext(aggregate *types.ComponentMetadata, delegates map[string]*types.ComponentMetadata, order ...string) *FlowControllerContext {
	if aggregate == nil {
		aggregate = &types.ComponentMetadata{Name: "aggregate"}
	}
	return &FlowControllerContext{
		ComponentContext: NewComponentContext("flowController"),
		Aggregate:        aggregate,
		Delegates:        delegates,
		Constraints:      &types.FlowConstraints{Type: types.FlowConstraintsFixed, Order: order},
	}
}

func (c *FlowControllerContext) AggregateMetadata() *types.ComponentMetadata {
	return c.Aggregate
}

func (c *FlowControllerContext) DelegateMetadata() map[string]*types.ComponentMetadata {
	return c.Delegates
}

func (c *FlowControllerContext) FlowConstraints() *types.FlowConstraints {
	return c.Constraints
}

// CreateAndInitComponent 创建并初始化一个组件实例
func CreateAndInitComponent(componentType string, ctx types.ComponentContext, configuration types.Configuration, registry *types.SafeComponentSlice) (types.Component, error) {
	for _, component := range registry.Components() {
		if component.Type() == componentType {
			instance := component.New()
			return instance, instance.Init(ctx, configuration)
		}
	}
	return nil, fmt.Errorf("component not found. componentType=%s", componentType)
}

// NewDocument returns a pool-less CAS holding text in the given language
func NewDocument(text, language string) *cas.Cas {
	c := cas.New()
	c.SetDocumentText(text)
	if language != "" {
		c.SetDocumentLanguage(language)
	}
	return c
}
