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

import (
	"fmt"
	"strings"
)

// StepKind kind of a flow step
type StepKind int

const (
	// StepSimple invoke one component
	StepSimple StepKind = iota
	// StepParallel invoke several components, in list order
	StepParallel
	// StepFinal the CAS leaves the flow
	StepFinal
)

// Step is what a Flow decides should happen next to its CAS.
// Step 流程决定CAS下一步的动作
type Step interface {
	Kind() StepKind
}

// SimpleStep invokes one component
type SimpleStep struct {
	//Key delegate key
	Key string
	//ResultSpec optional partial result specification for the delegate
	ResultSpec *ResultSpecification
}

func (s SimpleStep) Kind() StepKind {
	return StepSimple
}

func (s SimpleStep) String() string {
	return "SimpleStep(" + s.Key + ")"
}

// ParallelStep invokes several components. The CAS is not copied, the
// components are invoked one after another in list order.
type ParallelStep struct {
	Keys []string
}

func (s ParallelStep) Kind() StepKind {
	return StepParallel
}

func (s ParallelStep) String() string {
	return "ParallelStep(" + strings.Join(s.Keys, ",") + ")"
}

// FinalStep ends the flow of a CAS
type FinalStep struct {
	//ForceCasToBeDropped the CAS is released instead of being returned from the aggregate
	ForceCasToBeDropped bool
}

func (s FinalStep) Kind() StepKind {
	return StepFinal
}

func (s FinalStep) String() string {
	return fmt.Sprintf("FinalStep(drop=%v)", s.ForceCasToBeDropped)
}

// Flow is the routing state of one CAS. A Flow is owned by exactly one CAS
// while the CAS is in circulation and is discarded when the CAS finishes.
//
// Flow 一个CAS的路由状态，CAS流转期间独占，CAS结束后丢弃。
type Flow interface {
	//Next returns the next step
	Next() (Step, error)
	//NewCasProduced returns the flow for a CAS produced by the component `producedBy`
	NewCasProduced(newCas AbstractCas, producedBy string) (Flow, error)
	//ContinueOnFailure decides whether the CAS keeps flowing after `failedKey` failed
	ContinueOnFailure(failedKey string, err error) bool
	//Aborted notifies that processing of the CAS was abandoned
	Aborted()
}

// FlowController computes Flows for an aggregate.
// FlowController 为聚合组件计算每个CAS的流程
type FlowController interface {
	Component
	//ComputeFlow returns a new Flow for a CAS entering the aggregate
	ComputeFlow(cas AbstractCas) (Flow, error)
	//AddAnalysisEngines notifies that delegates were added
	AddAnalysisEngines(keys []string) error
	//RemoveAnalysisEngines notifies that delegates were removed
	RemoveAnalysisEngines(keys []string) error
	//CollectionProcessComplete end of collection notification
	CollectionProcessComplete() error
	//RequiredCasInterface CasInterfaceCAS or CasInterfaceJCas
	RequiredCasInterface() string
}

// FlowControllerContext is the ComponentContext handed to flow controllers.
// FlowControllerContext 流程控制器的初始化上下文
type FlowControllerContext interface {
	ComponentContext
	//AggregateMetadata metadata of the enclosing aggregate
	AggregateMetadata() *ComponentMetadata
	//DelegateMetadata key -> metadata of the current delegates, a read-only snapshot
	DelegateMetadata() map[string]*ComponentMetadata
	//FlowConstraints constraints declared by the aggregate, may be nil
	FlowConstraints() *FlowConstraints
}
