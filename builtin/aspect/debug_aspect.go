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
	"github.com/rulego/casflow/api/types"
)

var (
	_ types.BeforeAspect = (*Debug)(nil)
	_ types.AfterAspect  = (*Debug)(nil)
)

// Debug reports every CAS entering and leaving a delegate to OnDebug.
// The engine adds it when Config.OnDebug is set.
//
// Debug 调试切面，把流入(IN)和流出(OUT)委托组件的CAS报告给OnDebug回调
type Debug struct {
	OnDebug func(aggregate string, flowType string, componentKey string, cas types.CAS, err error)
}

// NewDebug creates a Debug aspect calling onDebug
func NewDebug(onDebug func(aggregate string, flowType string, componentKey string, cas types.CAS, err error)) *Debug {
	return &Debug{OnDebug: onDebug}
}

// Order debug runs after every other aspect
func (aspect *Debug) Order() int {
	return 900
}

func (aspect *Debug) PointCut(types.InvocationContext) bool {
	return aspect.OnDebug != nil
}

func (aspect *Debug) Before(ctx types.InvocationContext, cas types.CAS) {
	aspect.OnDebug(ctx.Aggregate, types.In, ctx.Key, cas, nil)
}

func (aspect *Debug) After(ctx types.InvocationContext, cas types.CAS, err error) {
	aspect.OnDebug(ctx.Aggregate, types.Out, ctx.Key, cas, err)
}
