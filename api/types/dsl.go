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
	"net/url"
)

// SpecifierKind tags the closed set of component specifier variants.
type SpecifierKind int

const (
	// KindPrimitive a single annotator
	KindPrimitive SpecifierKind = iota
	// KindAggregate a composition of delegates
	KindAggregate
	// KindOpaque a component whose metadata cannot be inspected locally, e.g. a remote service
	KindOpaque
)

func (k SpecifierKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindAggregate:
		return "aggregate"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// ComponentSpecifier describes a component. Implemented only by
// *PrimitiveSpecifier, *AggregateSpecifier and *OpaqueSpecifier.
//
// ComponentSpecifier 组件描述符，只有原子、聚合、不透明三种实现
type ComponentSpecifier interface {
	Kind() SpecifierKind
	//SourceUrl the URL the specifier was parsed from, nil for inline specifiers
	SourceUrl() *url.URL
	SetSourceUrl(u *url.URL)
	//Metadata static metadata, nil for opaque specifiers
	Metadata() *ComponentMetadata
	specifier()
}

// Capability declares what a component consumes and produces for a set of languages.
// Capability 组件能力声明
type Capability struct {
	//Inputs type or feature names consumed, features are written `Type:feature`
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	//Outputs type or feature names produced
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	//Languages supported languages, empty means x-unspecified
	Languages []string `json:"languages,omitempty" yaml:"languages,omitempty"`
	//InputSofas view names read
	InputSofas []string `json:"inputSofas,omitempty" yaml:"inputSofas,omitempty"`
	//OutputSofas view names created or written
	OutputSofas []string `json:"outputSofas,omitempty" yaml:"outputSofas,omitempty"`
}

// LanguagesOrUnspecified returns the declared languages or x-unspecified.
func (c Capability) LanguagesOrUnspecified() []string {
	if len(c.Languages) == 0 {
		return []string{LanguageUnspecified}
	}
	return c.Languages
}

// OperationalProperties runtime properties of a component
type OperationalProperties struct {
	//OutputsNewCases true for CAS multipliers and for aggregates that return produced CASes
	OutputsNewCases bool `json:"outputsNewCases" yaml:"outputsNewCases"`
	//ModifiesCas false for read-only consumers
	ModifiesCas bool `json:"modifiesCas" yaml:"modifiesCas"`
	//MultipleDeploymentAllowed the component may be replicated
	MultipleDeploymentAllowed bool `json:"multipleDeploymentAllowed" yaml:"multipleDeploymentAllowed"`
}

// ComponentMetadata static metadata of a component
// ComponentMetadata 组件静态元数据
type ComponentMetadata struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	//Capabilities input/output declarations per language
	Capabilities []Capability `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	//OperationalProperties runtime properties
	OperationalProperties OperationalProperties `json:"operationalProperties" yaml:"operationalProperties"`
	//SofaAware the component addresses views by name instead of receiving the mapped default view
	SofaAware bool `json:"sofaAware,omitempty" yaml:"sofaAware,omitempty"`
}

// InputSofas union of input views over all capabilities
func (m *ComponentMetadata) InputSofas() []string {
	var result []string
	for _, c := range m.Capabilities {
		result = appendUnique(result, c.InputSofas...)
	}
	return result
}

// OutputSofas union of output views over all capabilities
func (m *ComponentMetadata) OutputSofas() []string {
	var result []string
	for _, c := range m.Capabilities {
		result = appendUnique(result, c.OutputSofas...)
	}
	return result
}

// IsCasMultiplier reports whether the component outputs new CASes
func (m *ComponentMetadata) IsCasMultiplier() bool {
	return m != nil && m.OperationalProperties.OutputsNewCases
}

// Copy returns a deep copy
func (m *ComponentMetadata) Copy() *ComponentMetadata {
	if m == nil {
		return nil
	}
	c := *m
	c.Capabilities = make([]Capability, len(m.Capabilities))
	for i, item := range m.Capabilities {
		c.Capabilities[i] = Capability{
			Inputs:      append([]string(nil), item.Inputs...),
			Outputs:     append([]string(nil), item.Outputs...),
			Languages:   append([]string(nil), item.Languages...),
			InputSofas:  append([]string(nil), item.InputSofas...),
			OutputSofas: append([]string(nil), item.OutputSofas...),
		}
	}
	return &c
}

// Import is a deferred reference to a specifier, by location or by logical name.
// Import 对描述符的延迟引用，按位置或逻辑名称
type Import struct {
	//Location URL, relative to the URL of the declaring descriptor
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	//Name logical name resolved by the ResourceManager
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (i Import) String() string {
	if i.Location != "" {
		return i.Location
	}
	return i.Name
}

// Delegate is one entry of an aggregate's delegate map. It is pending while
// Import is set and Specifier is nil, and resolved once Specifier is set.
// Import stays set after resolution so the descriptor can be written back as declared.
//
// Delegate 聚合描述符中的一个委托条目。Import不为空且Specifier为空时为待解析状态。
type Delegate struct {
	Import    *Import
	Specifier ComponentSpecifier
}

// IsResolved reports whether the entry carries a specifier
func (d Delegate) IsResolved() bool {
	return d.Specifier != nil
}

// SofaMapping maps a delegate view onto an aggregate view
type SofaMapping struct {
	ComponentKey string `json:"componentKey" yaml:"componentKey"`
	//ComponentSofaName empty means the default view
	ComponentSofaName string `json:"componentSofaName,omitempty" yaml:"componentSofaName,omitempty"`
	AggregateSofaName string `json:"aggregateSofaName" yaml:"aggregateSofaName"`
}

// FlowConstraints kinds
const (
	FlowConstraintsFixed              = "fixed"
	FlowConstraintsCapabilityLanguage = "capabilityLanguage"
)

// FlowConstraints the ordering declared by an aggregate
type FlowConstraints struct {
	//Type fixed or capabilityLanguage
	Type string `json:"type" yaml:"type"`
	//Order static sequence of delegate keys
	Order []string `json:"order" yaml:"order"`
}

// FlowControllerSpecifier declares a flow controller implementation
type FlowControllerSpecifier struct {
	//Implementation registered component type
	Implementation string `json:"implementation" yaml:"implementation"`
	//Configuration parameters
	Configuration Configuration `json:"configuration,omitempty" yaml:"configuration,omitempty"`
	//SofaAware the controller receives the base CAS instead of the mapped default view
	SofaAware bool `json:"sofaAware,omitempty" yaml:"sofaAware,omitempty"`
	sourceUrl *url.URL
}

func (s *FlowControllerSpecifier) SourceUrl() *url.URL {
	return s.sourceUrl
}

func (s *FlowControllerSpecifier) SetSourceUrl(u *url.URL) {
	s.sourceUrl = u
}

// FlowControllerDeclaration binds a key to a flow controller given inline or by import
type FlowControllerDeclaration struct {
	Key       string
	Import    *Import
	Specifier *FlowControllerSpecifier
}

// PrimitiveSpecifier describes one annotator
type PrimitiveSpecifier struct {
	ComponentMetadata
	//Implementation registered component type
	Implementation string
	//Configuration parameters
	Configuration Configuration
	sourceUrl     *url.URL
}

func (s *PrimitiveSpecifier) Kind() SpecifierKind          { return KindPrimitive }
func (s *PrimitiveSpecifier) SourceUrl() *url.URL          { return s.sourceUrl }
func (s *PrimitiveSpecifier) SetSourceUrl(u *url.URL)      { s.sourceUrl = u }
func (s *PrimitiveSpecifier) Metadata() *ComponentMetadata { return &s.ComponentMetadata }
func (s *PrimitiveSpecifier) specifier()                   {}

// AggregateSpecifier describes a composition of delegates.
// AggregateSpecifier 聚合组件描述符
type AggregateSpecifier struct {
	ComponentMetadata
	//Delegates key -> inline or imported specifier
	Delegates map[string]*Delegate
	//FlowController optional declaration, the default is chosen by FlowConstraints
	FlowController *FlowControllerDeclaration
	//FlowConstraints declared ordering
	FlowConstraints *FlowConstraints
	//SofaMappings delegate views onto aggregate views
	SofaMappings []SofaMapping
	sourceUrl    *url.URL
	//processedImports imports already resolved, keyed by delegate or flow controller key
	processedImports map[string]Import
}

func (s *AggregateSpecifier) Kind() SpecifierKind          { return KindAggregate }
func (s *AggregateSpecifier) SourceUrl() *url.URL          { return s.sourceUrl }
func (s *AggregateSpecifier) SetSourceUrl(u *url.URL)      { s.sourceUrl = u }
func (s *AggregateSpecifier) Metadata() *ComponentMetadata { return &s.ComponentMetadata }
func (s *AggregateSpecifier) specifier()                   {}

// ProcessedImports returns the record of imports already resolved.
// The returned map is owned by the specifier.
func (s *AggregateSpecifier) ProcessedImports() map[string]Import {
	if s.processedImports == nil {
		s.processedImports = make(map[string]Import)
	}
	return s.processedImports
}

// DelegateSpecifiers returns key -> specifier for all resolved delegates
func (s *AggregateSpecifier) DelegateSpecifiers() map[string]ComponentSpecifier {
	result := make(map[string]ComponentSpecifier, len(s.Delegates))
	for k, d := range s.Delegates {
		if d != nil && d.Specifier != nil {
			result[k] = d.Specifier
		}
	}
	return result
}

// OpaqueSpecifier describes a component that is only reachable through a
// registered factory, e.g. a service client. Its views cannot be inspected.
type OpaqueSpecifier struct {
	//Uri endpoint or resource identifier
	Uri string
	//Parameters factory specific parameters
	Parameters Configuration
	sourceUrl  *url.URL
}

func (s *OpaqueSpecifier) Kind() SpecifierKind          { return KindOpaque }
func (s *OpaqueSpecifier) SourceUrl() *url.URL          { return s.sourceUrl }
func (s *OpaqueSpecifier) SetSourceUrl(u *url.URL)      { s.sourceUrl = u }
func (s *OpaqueSpecifier) Metadata() *ComponentMetadata { return nil }
func (s *OpaqueSpecifier) specifier()                   {}

// ResourceManager locates and parses imported descriptors.
// ResourceManager 定位并解析被导入的描述符
type ResourceManager interface {
	//ResolveName maps a logical import name onto a descriptor URL
	ResolveName(name string) (*url.URL, error)
	//ParseSpecifier reads and parses the descriptor at the URL
	ParseSpecifier(location *url.URL) (ComponentSpecifier, error)
	//ParseFlowControllerSpecifier reads and parses a flow controller descriptor
	ParseFlowControllerSpecifier(location *url.URL) (*FlowControllerSpecifier, error)
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, item := range list {
			if item == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}
