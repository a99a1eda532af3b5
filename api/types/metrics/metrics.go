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

package metrics

import (
	"sync/atomic"
	"time"
)

// EngineMetrics holds counters for aggregate traversals and delegate invocations.
type EngineMetrics struct {
	Current     int64 // Number of traversals in progress
	Total       int64 // Total number of traversals started
	Failed      int64 // Number of traversals that ended with an error
	Success     int64 // Number of traversals that completed
	Invocations int64 // Number of delegate invocations
	Dropped     int64 // Number of internally produced CASes released by the aggregate
	FlowNanos   int64 // Time spent inside flow controllers
}

// NewEngineMetrics creates a new instance of EngineMetrics.
func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{}
}

// IncrementCurrent increases the count of current traversals.
func (m *EngineMetrics) IncrementCurrent() {
	atomic.AddInt64(&m.Current, 1)
}

// DecrementCurrent decreases the count of current traversals.
func (m *EngineMetrics) DecrementCurrent() {
	atomic.AddInt64(&m.Current, -1)
}

// IncrementTotal increases the total count of traversals.
func (m *EngineMetrics) IncrementTotal() {
	atomic.AddInt64(&m.Total, 1)
}

// IncrementFailed increases the count of failed traversals.
func (m *EngineMetrics) IncrementFailed() {
	atomic.AddInt64(&m.Failed, 1)
}

// IncrementSuccess increases the count of completed traversals.
func (m *EngineMetrics) IncrementSuccess() {
	atomic.AddInt64(&m.Success, 1)
}

// IncrementInvocations increases the count of delegate invocations.
func (m *EngineMetrics) IncrementInvocations() {
	atomic.AddInt64(&m.Invocations, 1)
}

// IncrementDropped increases the count of dropped CASes.
func (m *EngineMetrics) IncrementDropped() {
	atomic.AddInt64(&m.Dropped, 1)
}

// AddFlowTime records time spent in a flow controller.
func (m *EngineMetrics) AddFlowTime(d time.Duration) {
	atomic.AddInt64(&m.FlowNanos, int64(d))
}

// Get returns a copy of the current metrics.
func (m *EngineMetrics) Get() EngineMetrics {
	return EngineMetrics{
		Current:     atomic.LoadInt64(&m.Current),
		Total:       atomic.LoadInt64(&m.Total),
		Failed:      atomic.LoadInt64(&m.Failed),
		Success:     atomic.LoadInt64(&m.Success),
		Invocations: atomic.LoadInt64(&m.Invocations),
		Dropped:     atomic.LoadInt64(&m.Dropped),
		FlowNanos:   atomic.LoadInt64(&m.FlowNanos),
	}
}

// Reset resets all metrics to zero.
func (m *EngineMetrics) Reset() {
	atomic.StoreInt64(&m.Current, 0)
	atomic.StoreInt64(&m.Total, 0)
	atomic.StoreInt64(&m.Failed, 0)
	atomic.StoreInt64(&m.Success, 0)
	atomic.StoreInt64(&m.Invocations, 0)
	atomic.StoreInt64(&m.Dropped, 0)
	atomic.StoreInt64(&m.FlowNanos, 0)
}

// DelegateMetrics holds invocation counters of one delegate.
type DelegateMetrics struct {
	Invocations int64 // Number of invocations
	Failures    int64 // Number of invocations that returned an error
	Nanos       int64 // Time spent inside the delegate
}

// NewDelegateMetrics creates a new instance of DelegateMetrics.
func NewDelegateMetrics() *DelegateMetrics {
	return &DelegateMetrics{}
}

// Record records one invocation.
func (m *DelegateMetrics) Record(d time.Duration, err error) {
	atomic.AddInt64(&m.Invocations, 1)
	atomic.AddInt64(&m.Nanos, int64(d))
	if err != nil {
		atomic.AddInt64(&m.Failures, 1)
	}
}

// Get returns a copy of the current counters.
func (m *DelegateMetrics) Get() DelegateMetrics {
	return DelegateMetrics{
		Invocations: atomic.LoadInt64(&m.Invocations),
		Failures:    atomic.LoadInt64(&m.Failures),
		Nanos:       atomic.LoadInt64(&m.Nanos),
	}
}
