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
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rulego/casflow/api/types"
)

// DelegateRegistry holds the live delegates of an aggregate. Readers see an
// immutable snapshot; writers replace it under a lock.
// DelegateRegistry 聚合组件的委托组件表，写时复制
type DelegateRegistry struct {
	lock    sync.Mutex
	engines atomic.Pointer[map[string]types.AnalysisEngine]
}

// NewDelegateRegistry creates an empty registry
func NewDelegateRegistry() *DelegateRegistry {
	r := &DelegateRegistry{}
	empty := make(map[string]types.AnalysisEngine)
	r.engines.Store(&empty)
	return r
}

func (r *DelegateRegistry) snapshot() map[string]types.AnalysisEngine {
	return *r.engines.Load()
}

// Get returns the delegate registered under key
func (r *DelegateRegistry) Get(key string) (types.AnalysisEngine, bool) {
	engine, ok := r.snapshot()[key]
	return engine, ok
}

// Len number of delegates
func (r *DelegateRegistry) Len() int {
	return len(r.snapshot())
}

// Keys sorted delegate keys
func (r *DelegateRegistry) Keys() []string {
	return sortedKeys(r.snapshot())
}

// Metadata returns key -> metadata of the current delegates
func (r *DelegateRegistry) Metadata() map[string]*types.ComponentMetadata {
	current := r.snapshot()
	result := make(map[string]*types.ComponentMetadata, len(current))
	for k, engine := range current {
		result[k] = engine.Metadata()
	}
	return result
}

// Add registers engine under key, the key must be free
func (r *DelegateRegistry) Add(key string, engine types.AnalysisEngine) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	current := r.snapshot()
	if _, ok := current[key]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateKey, key)
	}
	next := make(map[string]types.AnalysisEngine, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[key] = engine
	r.engines.Store(&next)
	return nil
}

// Remove unregisters keys and returns the removed engines
func (r *DelegateRegistry) Remove(keys ...string) []types.AnalysisEngine {
	r.lock.Lock()
	defer r.lock.Unlock()
	current := r.snapshot()
	next := make(map[string]types.AnalysisEngine, len(current))
	for k, v := range current {
		next[k] = v
	}
	var removed []types.AnalysisEngine
	for _, key := range keys {
		if engine, ok := next[key]; ok {
			removed = append(removed, engine)
			delete(next, key)
		}
	}
	r.engines.Store(&next)
	return removed
}

// Range calls fn for each delegate in key order until fn returns false
func (r *DelegateRegistry) Range(fn func(key string, engine types.AnalysisEngine) bool) {
	current := r.snapshot()
	for _, key := range sortedKeys(current) {
		if !fn(key, current[key]) {
			return
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
