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

	"github.com/rulego/casflow/api/types"
)

// ErrNoCasPool the engine was configured without a CAS pool
var ErrNoCasPool = errors.New("no CAS pool configured")

// componentContext is handed to annotators at Init
type componentContext struct {
	key      string
	config   types.Config
	metadata *types.ComponentMetadata
}

var _ types.ComponentContext = (*componentContext)(nil)

func (c *componentContext) Key() string {
	return c.key
}

func (c *componentContext) Config() types.Config {
	return c.config
}

func (c *componentContext) Logger() types.Logger {
	return c.config.Logger
}

func (c *componentContext) EmptyCas() (types.CAS, error) {
	if c.config.CasPool == nil {
		return nil, ErrNoCasPool
	}
	return c.config.CasPool.EmptyCas()
}

func (c *componentContext) Metadata() *types.ComponentMetadata {
	return c.metadata
}

// flowControllerContext is handed to flow controllers at Init. Delegate
// metadata is read from the live delegate registry on every call.
type flowControllerContext struct {
	componentContext
	aggregate   *types.ComponentMetadata
	delegates   *DelegateRegistry
	constraints *types.FlowConstraints
}

var _ types.FlowControllerContext = (*flowControllerContext)(nil)

func (c *flowControllerContext) AggregateMetadata() *types.ComponentMetadata {
	return c.aggregate
}

func (c *flowControllerContext) DelegateMetadata() map[string]*types.ComponentMetadata {
	return c.delegates.Metadata()
}

func (c *flowControllerContext) FlowConstraints() *types.FlowConstraints {
	return c.constraints
}
