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

// Package types defines the data model and the contracts shared by the
// descriptor resolver, the flow controllers and the aggregate engine.
//
// Package types 定义描述符解析器、流程控制器和聚合引擎共享的数据模型和接口。
package types

import (
	"errors"
	"fmt"
)

// flow direction type
// 流向 CAS流入、流出组件方向
const (
	In  = "IN"
	Out = "OUT"
)

// ProcessError is the error surfaced by an aggregate when processing of a
// CAS fails. It records where the failure happened and wraps the cause.
//
// ProcessError 聚合组件处理CAS失败时返回的错误，记录失败位置并包装原因。
type ProcessError struct {
	//Aggregate name of the aggregate
	Aggregate string
	//ComponentKey delegate key, empty when the failure is not tied to a delegate
	ComponentKey string
	Err          error
}

func (e *ProcessError) Error() string {
	if e.ComponentKey == "" {
		return fmt.Sprintf("aggregate %s: %v", e.Aggregate, e.Err)
	}
	return fmt.Sprintf("aggregate %s, component %s: %v", e.Aggregate, e.ComponentKey, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// WrapProcessError wraps err into a ProcessError unless it already is one.
func WrapProcessError(aggregate, componentKey string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessError
	if errors.As(err, &pe) {
		return err
	}
	return &ProcessError{Aggregate: aggregate, ComponentKey: componentKey, Err: err}
}
