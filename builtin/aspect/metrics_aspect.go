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

package aspect

import (
	"sync"
	"time"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/api/types/metrics"
)

var (
	_ types.BeforeAspect = (*MetricsAspect)(nil)
	_ types.AfterAspect  = (*MetricsAspect)(nil)
)

// MetricsAspect collects invocation counters per delegate, keyed by
// `<aggregate>/<delegate key>`.
type MetricsAspect struct {
	delegates sync.Map
	// started invocation start times by CAS id and delegate
	started sync.Map
}

// NewMetricsAspect creates an aspect with empty counters
func NewMetricsAspect() *MetricsAspect {
	return &MetricsAspect{}
}

func (a *MetricsAspect) Order() int {
	return 20
}

func (a *MetricsAspect) PointCut(types.InvocationContext) bool {
	return true
}

func (a *MetricsAspect) Before(ctx types.InvocationContext, cas types.CAS) {
	a.started.Store(startKey(ctx, cas), time.Now())
}

func (a *MetricsAspect) After(ctx types.InvocationContext, cas types.CAS, err error) {
	m := a.delegate(ctx.Aggregate + "/" + ctx.Key)
	if v, ok := a.started.LoadAndDelete(startKey(ctx, cas)); ok {
		m.Record(time.Since(v.(time.Time)), err)
	} else {
		m.Record(0, err)
	}
}

func (a *MetricsAspect) delegate(key string) *metrics.DelegateMetrics {
	if v, ok := a.delegates.Load(key); ok {
		return v.(*metrics.DelegateMetrics)
	}
	v, _ := a.delegates.LoadOrStore(key, metrics.NewDelegateMetrics())
	return v.(*metrics.DelegateMetrics)
}

// GetMetrics returns a copy of the counters of every delegate seen so far
func (a *MetricsAspect) GetMetrics() map[string]metrics.DelegateMetrics {
	result := make(map[string]metrics.DelegateMetrics)
	a.delegates.Range(func(key, value any) bool {
		result[key.(string)] = value.(*metrics.DelegateMetrics).Get()
		return true
	})
	return result
}

// Reset clears every counter
func (a *MetricsAspect) Reset() {
	a.delegates.Range(func(key, value any) bool {
		a.delegates.Delete(key)
		return true
	})
}

func startKey(ctx types.InvocationContext, cas types.CAS) string {
	return cas.Id() + "/" + ctx.Aggregate + "/" + ctx.Key
}
