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

// Package aspect provides built-in aspects applied around delegate
// invocations of an aggregate.
//
// Package aspect 提供在聚合组件调用委托组件前后执行的内置切面。
//
// Available Built-in Aspects:
// 可用的内置切面：
//
//   - Debug: reports every CAS entering (IN) and leaving (OUT) a delegate to a callback
//     Debug：把每个进入和离开委托组件的CAS报告给回调函数
//
//   - MetricsAspect: per-delegate invocation counters and timings
//     MetricsAspect：按委托组件统计调用次数和耗时
//
// Aspects are executed in order based on their Order() method:
// 切面根据其 Order() 方法按顺序执行：
//  1. MetricsAspect (order: 20)
//  2. Debug (order: 900)
//
// Usage:
// 使用示例：
//
//	m := aspect.NewMetricsAspect()
//	engine, err := engine.NewAggregateEngine(spec, types.WithAspects(m))
package aspect
