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

import "sort"

// The interfaces below provide an AOP (Aspect Oriented Programming) mechanism
// around delegate invocation. They add behavior such as logging or metrics
// without modifying the delegates or the flow.
//
// 以下接口在委托组件调用前后提供 AOP(面向切面编程)机制，
// 用于在不修改组件或流程的情况下增加日志、指标等行为。

// InvocationContext describes one delegate invocation
type InvocationContext struct {
	//Aggregate name of the enclosing aggregate
	Aggregate string
	//Key delegate key
	Key string
	//Metadata delegate metadata
	Metadata *ComponentMetadata
}

// Aspect is the base interface for advice
// Aspect 增强点接口的基类
type Aspect interface {
	//Order returns the execution order, the smaller the value, the higher the priority
	//Order 返回执行顺序，值越小，优先级越高
	Order() int
}

// ComponentAspect is the base interface for delegate advice
type ComponentAspect interface {
	Aspect
	//PointCut decides whether the advice applies to the invocation
	//PointCut 声明一个切入点，用于判断是否需要执行增强点
	PointCut(ctx InvocationContext) bool
}

// BeforeAspect runs before a delegate processes a CAS
// BeforeAspect 委托组件处理CAS之前的增强点接口
type BeforeAspect interface {
	ComponentAspect
	Before(ctx InvocationContext, cas CAS)
}

// AfterAspect runs after a delegate processed a CAS, err is the delegate failure if any
// AfterAspect 委托组件处理CAS之后的增强点接口
type AfterAspect interface {
	ComponentAspect
	After(ctx InvocationContext, cas CAS, err error)
}

// AspectList aspects sorted on demand
type AspectList []Aspect

// ComponentAspects splits the list into before and after advice, sorted by Order
func (list AspectList) ComponentAspects() ([]BeforeAspect, []AfterAspect) {
	sorted := make(AspectList, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order() < sorted[j].Order()
	})
	var before []BeforeAspect
	var after []AfterAspect
	for _, item := range sorted {
		if a, ok := item.(BeforeAspect); ok {
			before = append(before, a)
		}
		if a, ok := item.(AfterAspect); ok {
			after = append(after, a)
		}
	}
	return before, after
}
