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

import "errors"

const (
	// Global prefix of global property placeholders, e.g. ${global.dataDir}
	Global = "global"
)

// Configuration and validation errors, detected at setup time.
// 配置与校验错误，在初始化阶段检测
var (
	// ErrCircularImport an import chain leads back to an enclosing descriptor
	ErrCircularImport = errors.New("circular import")
	// ErrImportNotResolvable an import target could not be located or read
	ErrImportNotResolvable = errors.New("import could not be resolved")
	// ErrUndefinedKey a flow constraint, sofa mapping or flow controller names an unknown component key
	ErrUndefinedKey = errors.New("undefined component key")
	// ErrDuplicateKey a key is used by more than one delegate or by a delegate and the flow controller
	ErrDuplicateKey = errors.New("duplicate component key")
	// ErrSofaMappingConflict the same component view is mapped to two aggregate views
	ErrSofaMappingConflict = errors.New("conflicting sofa mappings")
	// ErrSofaOutputNotMapped a component output view does not map to an aggregate output view
	ErrSofaOutputNotMapped = errors.New("component output sofa is not mapped to an aggregate output sofa")
	// ErrSofaInputNotSatisfied a component input view is neither an aggregate input nor another component's output
	ErrSofaInputNotSatisfied = errors.New("component input sofa is not satisfied")
	// ErrAggregateOutputSofaNotSourced an aggregate output view is not produced by any component
	ErrAggregateOutputSofaNotSourced = errors.New("aggregate output sofa is not produced by any component")
	// ErrAggregateInputSofaNotConsumed an aggregate input view is not read by any component
	ErrAggregateInputSofaNotConsumed = errors.New("aggregate input sofa is not consumed by any component")
	// ErrFlowControllerNotFound the declared flow controller implementation is not registered
	ErrFlowControllerNotFound = errors.New("flow controller implementation not found")
	// ErrNotFlowController the declared implementation does not implement FlowController
	ErrNotFlowController = errors.New("implementation is not a flow controller")
	// ErrNotAnnotator the declared implementation does not implement Annotator
	ErrNotAnnotator = errors.New("implementation is not an annotator")
	// ErrNoFactory no registered factory accepts the specifier
	ErrNoFactory = errors.New("no factory accepts the specifier")
	// ErrComponentNotFound the component type is not registered
	ErrComponentNotFound = errors.New("component not found")
)

// Routing errors, fatal for the traversal in which they occur.
// 路由错误，发生时终止当前遍历
var (
	// ErrUnknownComponentKey the flow routed to a key that has no delegate
	ErrUnknownComponentKey = errors.New("flow routed to an unknown component key")
	// ErrUnsupportedStep the flow returned a step type the engine does not handle
	ErrUnsupportedStep = errors.New("unsupported flow step")
	// ErrIllegalDropCas the flow asked to drop the CAS that entered the aggregate
	ErrIllegalDropCas = errors.New("the input CAS of an aggregate cannot be dropped")
	// ErrCasMultiplierNotSupported the flow cannot route CASes produced inside the aggregate
	ErrCasMultiplierNotSupported = errors.New("flow does not support CAS multipliers")
	// ErrIteratorReleased the output iterator was used after Release
	ErrIteratorReleased = errors.New("iterator has been released")
	// ErrNoMoreCas Next was called on an exhausted iterator
	ErrNoMoreCas = errors.New("no more CAS")
)
