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

package flow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rulego/casflow/api/types"
)

// ErrNoFlowControllerContext the controller was initialized outside an aggregate
var ErrNoFlowControllerContext = errors.New("flow controller requires a FlowControllerContext")

// FlowBase provides the defaults of a Flow: no CAS multiplier support, stop
// on every failure, nothing to do on abort.
type FlowBase struct {
}

func (FlowBase) NewCasProduced(_ types.AbstractCas, producedBy string) (types.Flow, error) {
	return nil, fmt.Errorf("%w: new CAS produced by %s", types.ErrCasMultiplierNotSupported, producedBy)
}

func (FlowBase) ContinueOnFailure(string, error) bool {
	return false
}

func (FlowBase) Aborted() {
}

// ControllerBase holds the context of a flow controller and the defaults of
// the lifecycle methods. Membership changes are accepted and ignored.
type ControllerBase struct {
	Context types.FlowControllerContext
}

// InitContext keeps ctx, which must be a FlowControllerContext
func (b *ControllerBase) InitContext(ctx types.ComponentContext) error {
	fc, ok := ctx.(types.FlowControllerContext)
	if !ok {
		return ErrNoFlowControllerContext
	}
	b.Context = fc
	return nil
}

func (b *ControllerBase) AddAnalysisEngines([]string) error {
	return nil
}

func (b *ControllerBase) RemoveAnalysisEngines([]string) error {
	return nil
}

func (b *ControllerBase) CollectionProcessComplete() error {
	return nil
}

func (b *ControllerBase) RequiredCasInterface() string {
	return types.CasInterfaceCAS
}

func (b *ControllerBase) Destroy() {
}

// DelegateOrder returns the declared order, or all delegate keys sorted when
// the aggregate declares none. Every key must name a delegate.
func (b *ControllerBase) DelegateOrder(override []string) ([]string, error) {
	delegates := b.Context.DelegateMetadata()
	order := override
	if len(order) == 0 {
		if fc := b.Context.FlowConstraints(); fc != nil {
			order = fc.Order
		}
	}
	if len(order) == 0 {
		for k := range delegates {
			order = append(order, k)
		}
		sort.Strings(order)
		return order, nil
	}
	for _, key := range order {
		if _, ok := delegates[key]; !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrUndefinedKey, key)
		}
	}
	return append([]string(nil), order...), nil
}

// failurePolicy decides ContinueOnFailure from a list of keys, `*` matches every key
type failurePolicy map[string]struct{}

func newFailurePolicy(keys []string) failurePolicy {
	p := make(failurePolicy, len(keys))
	for _, k := range keys {
		p[k] = struct{}{}
	}
	return p
}

func (p failurePolicy) continueOnFailure(key string) bool {
	if _, ok := p["*"]; ok {
		return true
	}
	_, ok := p[key]
	return ok
}

func indexOf(list []string, key string) int {
	for i, item := range list {
		if item == key {
			return i
		}
	}
	return -1
}

func withoutKeys(list []string, keys []string) []string {
	result := make([]string, 0, len(list))
	for _, item := range list {
		if indexOf(keys, item) < 0 {
			result = append(result, item)
		}
	}
	return result
}

func withKeys(list []string, keys []string) []string {
	result := append([]string(nil), list...)
	for _, key := range keys {
		if indexOf(result, key) < 0 {
			result = append(result, key)
		}
	}
	return result
}
