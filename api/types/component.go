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

import "sync"

// Configuration component configuration parameters
// Configuration 组件配置参数
type Configuration map[string]interface{}

// Component is the base interface of every pluggable implementation
// (annotators, CAS multipliers and flow controllers).
// Prototypes are registered by Type() and cloned with New() for every delegate.
//
// Component 所有可插拔实现（标注器、CAS复制器、流程控制器）的基础接口。
// 原型通过Type()注册，每个委托组件通过New()创建独立实例。
type Component interface {
	//New creates a new instance, instances never share state
	New() Component
	//Type implementation name referenced by descriptors, must be unique in a registry
	Type() string
	//Init initializes the instance once, before any CAS is processed
	Init(ctx ComponentContext, configuration Configuration) error
	//Destroy releases resources
	Destroy()
}

// Annotator is a primitive analysis component.
// Annotator 原子分析组件
type Annotator interface {
	Component
	//Process analyses the CAS. The CAS abstraction matches RequiredCasInterface.
	Process(cas AbstractCas) error
}

// CasMultiplier is an annotator that may produce new CASes after Process.
// CasMultiplier 处理输入CAS之后可以产生新CAS的标注器
type CasMultiplier interface {
	Annotator
	//HasNext reports whether another output CAS is available for the last input
	HasNext() (bool, error)
	//Next returns the next output CAS, obtained from ComponentContext.EmptyCas
	Next() (AbstractCas, error)
}

// CasInterfaceGetter is optional. Components implementing it receive the CAS
// abstraction they declare, CasInterfaceCAS otherwise.
type CasInterfaceGetter interface {
	RequiredCasInterface() string
}

// ResultSpecSetter is optional. Annotators implementing it receive the partial
// result specification computed by the flow.
type ResultSpecSetter interface {
	SetResultSpecification(rs *ResultSpecification)
}

// CollectionProcessCompleter is optional and is notified at the end of a collection.
type CollectionProcessCompleter interface {
	CollectionProcessComplete() error
}

// ComponentContext is handed to Init.
// ComponentContext 组件初始化上下文
type ComponentContext interface {
	//Key delegate key of the component inside its aggregate
	Key() string
	//Config engine configuration
	Config() Config
	//Logger shortcut for Config().Logger
	Logger() Logger
	//EmptyCas returns an empty CAS, used by CAS multipliers
	EmptyCas() (CAS, error)
	//Metadata static metadata of the component
	Metadata() *ComponentMetadata
}

// CasIterator iterates over CASes produced by one component invocation.
// CasIterator 一次组件调用产生的CAS迭代器
type CasIterator interface {
	HasNext() (bool, error)
	Next() (CAS, error)
	//Release abandons the iteration and releases pending resources
	Release()
}

// AnalysisEngine is the runtime contract of a delegate as seen by the aggregate.
// Primitive engines and aggregates both implement it.
//
// AnalysisEngine 聚合引擎视角下委托组件的运行时接口，原子引擎和聚合引擎都实现该接口。
type AnalysisEngine interface {
	//Metadata static metadata
	Metadata() *ComponentMetadata
	//ProcessAndOutputNewCASes processes the CAS and returns the new CASes it produced.
	//An empty iterator means the CAS was consumed in place.
	ProcessAndOutputNewCASes(cas CAS) (CasIterator, error)
	//ProcessWithResultSpecification is ProcessAndOutputNewCASes under rs,
	//rs applies to this call only and leaves the engine unchanged
	ProcessWithResultSpecification(cas CAS, rs *ResultSpecification) (CasIterator, error)
	//SetResultSpecification sets the result specification used by calls that carry none
	SetResultSpecification(rs *ResultSpecification)
	//CollectionProcessComplete end of collection notification
	CollectionProcessComplete() error
	//Destroy releases resources
	Destroy()
}

// ComponentRegistry registers component prototypes by type.
// ComponentRegistry 组件原型注册器
type ComponentRegistry interface {
	//Register registers a prototype, returns an error if `Type()` already exists
	Register(component Component) error
	//RegisterPlugin loads components from a Go plugin file
	RegisterPlugin(name string, file string) error
	//Unregister removes a component by type or all components of a plugin by plugin name
	Unregister(componentType string) error
	//NewComponent creates a new instance of the given type
	NewComponent(componentType string) (Component, error)
	//GetComponents returns all registered prototypes
	GetComponents() map[string]Component
}

// PluginRegistry go plugin entry point
// 示例：
// package main
// var Plugins MyPlugins// plugin entry point
// type MyPlugins struct{}
//
//	func (p *MyPlugins) Init() error {
//		return nil
//	}
//
//	func (p *MyPlugins) Components() []types.Component {
//		return []types.Component{&UpperAnnotator{}}
//	}
type PluginRegistry interface {
	Init() error
	Components() []Component
}

// FactoryContext carries what a ComponentFactory needs to build a delegate.
type FactoryContext struct {
	//Key delegate key
	Key string
	//Config engine configuration
	Config Config
	//SofaMappings component view -> aggregate view for this delegate
	SofaMappings map[string]string
	//Factories lets aggregate factories build nested delegates
	Factories FactoryRegistry
}

// ComponentFactory builds live engines for specifiers.
// ComponentFactory 根据描述符创建运行时引擎
type ComponentFactory interface {
	//Produce returns ok=false if the factory does not handle the specifier
	Produce(spec ComponentSpecifier, ctx FactoryContext) (engine AnalysisEngine, ok bool, err error)
}

// FactoryRegistry is an explicit, ordered set of factories.
type FactoryRegistry interface {
	Register(factory ComponentFactory)
	Produce(spec ComponentSpecifier, ctx FactoryContext) (AnalysisEngine, error)
}

// SafeComponentSlice 安全的组件列表切片
type SafeComponentSlice struct {
	//组件列表
	components []Component
	sync.Mutex
}

// Add 线程安全地添加元素
func (p *SafeComponentSlice) Add(components ...Component) {
	p.Lock()
	defer p.Unlock()
	p.components = append(p.components, components...)
}

// Components 获取组件列表
func (p *SafeComponentSlice) Components() []Component {
	p.Lock()
	defer p.Unlock()
	return p.components
}
