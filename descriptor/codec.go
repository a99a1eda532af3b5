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

// Package descriptor reads and writes component descriptors as JSON or YAML
// documents and locates imported descriptors on disk or in a SQL table.
//
// A document carries a `kind` of primitive, aggregate, opaque or
// flowController. Aggregate delegates are either inline documents or
// `{import: {location: ...}}` / `{import: {name: ...}}` references.
//
// Package descriptor 组件描述符的JSON/YAML编解码，以及被导入描述符的定位
package descriptor

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/utils/json"
	"gopkg.in/yaml.v3"
)

// document kinds
const (
	KindPrimitive      = "primitive"
	KindAggregate      = "aggregate"
	KindOpaque         = "opaque"
	KindFlowController = "flowController"
)

// formats
const (
	FormatJson = "json"
	FormatYaml = "yaml"
)

// ErrUnknownKind the document kind is missing or not recognized
var ErrUnknownKind = errors.New("unknown descriptor kind")

// FlowControllerDocument flow controller declaration inside an aggregate document
type FlowControllerDocument struct {
	Key            string              `json:"key" yaml:"key"`
	Import         *types.Import       `json:"import,omitempty" yaml:"import,omitempty"`
	Implementation string              `json:"implementation,omitempty" yaml:"implementation,omitempty"`
	Configuration  types.Configuration `json:"configuration,omitempty" yaml:"configuration,omitempty"`
	SofaAware      bool                `json:"sofaAware,omitempty" yaml:"sofaAware,omitempty"`
}

// Document is the serialized form of every specifier kind
type Document struct {
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Import set for delegate references, every other field is then ignored
	Import *types.Import `json:"import,omitempty" yaml:"import,omitempty"`

	Name                  string                       `json:"name,omitempty" yaml:"name,omitempty"`
	Description           string                       `json:"description,omitempty" yaml:"description,omitempty"`
	Version               string                       `json:"version,omitempty" yaml:"version,omitempty"`
	Capabilities          []types.Capability           `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	OperationalProperties *types.OperationalProperties `json:"operationalProperties,omitempty" yaml:"operationalProperties,omitempty"`
	SofaAware             bool                         `json:"sofaAware,omitempty" yaml:"sofaAware,omitempty"`

	// primitive and flow controller
	Implementation string              `json:"implementation,omitempty" yaml:"implementation,omitempty"`
	Configuration  types.Configuration `json:"configuration,omitempty" yaml:"configuration,omitempty"`

	// aggregate
	Delegates       map[string]*Document    `json:"delegates,omitempty" yaml:"delegates,omitempty"`
	FlowController  *FlowControllerDocument `json:"flowController,omitempty" yaml:"flowController,omitempty"`
	FlowConstraints *types.FlowConstraints  `json:"flowConstraints,omitempty" yaml:"flowConstraints,omitempty"`
	SofaMappings    []types.SofaMapping     `json:"sofaMappings,omitempty" yaml:"sofaMappings,omitempty"`

	// opaque
	Uri        string              `json:"uri,omitempty" yaml:"uri,omitempty"`
	Parameters types.Configuration `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// FormatOf returns the format implied by a file name extension, json by default
func FormatOf(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYaml
	default:
		return FormatJson
	}
}

func decode(data []byte, format string) (*Document, error) {
	var doc Document
	var err error
	if format == FormatYaml {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func encode(doc *Document, format string) ([]byte, error) {
	if format == FormatYaml {
		return yaml.Marshal(doc)
	}
	v, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return json.Format(v)
}

// Unmarshal parses a component descriptor
func Unmarshal(data []byte, format string) (types.ComponentSpecifier, error) {
	doc, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	return ToSpecifier(doc)
}

// UnmarshalFlowController parses a flow controller descriptor
func UnmarshalFlowController(data []byte, format string) (*types.FlowControllerSpecifier, error) {
	doc, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	if doc.Kind != KindFlowController {
		return nil, fmt.Errorf("%w: %q, expected %s", ErrUnknownKind, doc.Kind, KindFlowController)
	}
	return &types.FlowControllerSpecifier{
		Implementation: doc.Implementation,
		Configuration:  doc.Configuration,
		SofaAware:      doc.SofaAware,
	}, nil
}

// Marshal writes a component descriptor. Imported delegates are written as
// their import, inline delegates as nested documents.
func Marshal(spec types.ComponentSpecifier, format string) ([]byte, error) {
	doc, err := FromSpecifier(spec)
	if err != nil {
		return nil, err
	}
	return encode(doc, format)
}

// ToSpecifier converts a document into a specifier
func ToSpecifier(doc *Document) (types.ComponentSpecifier, error) {
	switch doc.Kind {
	case KindPrimitive:
		return &types.PrimitiveSpecifier{
			ComponentMetadata: doc.metadata(),
			Implementation:    doc.Implementation,
			Configuration:     doc.Configuration,
		}, nil
	case KindAggregate:
		spec := &types.AggregateSpecifier{
			ComponentMetadata: doc.metadata(),
			Delegates:         make(map[string]*types.Delegate, len(doc.Delegates)),
			FlowConstraints:   doc.FlowConstraints,
			SofaMappings:      doc.SofaMappings,
		}
		for key, item := range doc.Delegates {
			if item == nil {
				return nil, fmt.Errorf("delegate %s is empty", key)
			}
			if item.Import != nil {
				imp := *item.Import
				spec.Delegates[key] = &types.Delegate{Import: &imp}
				continue
			}
			inner, err := ToSpecifier(item)
			if err != nil {
				return nil, fmt.Errorf("delegate %s: %w", key, err)
			}
			spec.Delegates[key] = &types.Delegate{Specifier: inner}
		}
		if fc := doc.FlowController; fc != nil {
			decl := &types.FlowControllerDeclaration{Key: fc.Key}
			if fc.Import != nil {
				imp := *fc.Import
				decl.Import = &imp
			} else {
				decl.Specifier = &types.FlowControllerSpecifier{
					Implementation: fc.Implementation,
					Configuration:  fc.Configuration,
					SofaAware:      fc.SofaAware,
				}
			}
			spec.FlowController = decl
		}
		return spec, nil
	case KindOpaque:
		return &types.OpaqueSpecifier{Uri: doc.Uri, Parameters: doc.Parameters}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, doc.Kind)
	}
}

// FromSpecifier converts a specifier into a document
func FromSpecifier(spec types.ComponentSpecifier) (*Document, error) {
	switch s := spec.(type) {
	case *types.PrimitiveSpecifier:
		doc := &Document{Kind: KindPrimitive, Implementation: s.Implementation, Configuration: s.Configuration}
		doc.setMetadata(&s.ComponentMetadata)
		return doc, nil
	case *types.AggregateSpecifier:
		doc := &Document{
			Kind:            KindAggregate,
			FlowConstraints: s.FlowConstraints,
			SofaMappings:    s.SofaMappings,
		}
		doc.setMetadata(&s.ComponentMetadata)
		if len(s.Delegates) > 0 {
			doc.Delegates = make(map[string]*Document, len(s.Delegates))
		}
		for key, d := range s.Delegates {
			if d == nil {
				continue
			}
			if d.Import != nil {
				imp := *d.Import
				doc.Delegates[key] = &Document{Import: &imp}
				continue
			}
			if d.Specifier == nil {
				return nil, fmt.Errorf("delegate %s has neither import nor specifier", key)
			}
			inner, err := FromSpecifier(d.Specifier)
			if err != nil {
				return nil, fmt.Errorf("delegate %s: %w", key, err)
			}
			doc.Delegates[key] = inner
		}
		if fc := s.FlowController; fc != nil {
			fcDoc := &FlowControllerDocument{Key: fc.Key}
			if fc.Import != nil {
				imp := *fc.Import
				fcDoc.Import = &imp
			} else if fc.Specifier != nil {
				fcDoc.Implementation = fc.Specifier.Implementation
				fcDoc.Configuration = fc.Specifier.Configuration
				fcDoc.SofaAware = fc.Specifier.SofaAware
			}
			doc.FlowController = fcDoc
		}
		return doc, nil
	case *types.OpaqueSpecifier:
		return &Document{Kind: KindOpaque, Uri: s.Uri, Parameters: s.Parameters}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, spec)
	}
}

func (d *Document) metadata() types.ComponentMetadata {
	m := types.ComponentMetadata{
		Name:         d.Name,
		Description:  d.Description,
		Version:      d.Version,
		Capabilities: d.Capabilities,
		SofaAware:    d.SofaAware,
	}
	if d.OperationalProperties != nil {
		m.OperationalProperties = *d.OperationalProperties
	} else {
		m.OperationalProperties = types.OperationalProperties{ModifiesCas: true, MultipleDeploymentAllowed: true}
	}
	return m
}

func (d *Document) setMetadata(m *types.ComponentMetadata) {
	d.Name = m.Name
	d.Description = m.Description
	d.Version = m.Version
	d.Capabilities = m.Capabilities
	d.SofaAware = m.SofaAware
	props := m.OperationalProperties
	d.OperationalProperties = &props
}
