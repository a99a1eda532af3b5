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

package engine

import (
	"errors"
	"fmt"
	"plugin"
	"sync"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/components/annotator"
	"github.com/rulego/casflow/components/flow"
	"github.com/rulego/casflow/components/multiplier"
)

// PluginsSymbol is the symbol used to identify plugins in a Go plugin file.
const PluginsSymbol = "Plugins"

// Registry is the default component registry.
var Registry = new(DefaultComponentRegistry)

// init registers the built-in annotators, multipliers and flow controllers.
func init() {
	var components []types.Component
	components = append(components, annotator.Registry.Components()...)
	components = append(components, multiplier.Registry.Components()...)
	components = append(components, flow.Registry.Components()...)

	for _, component := range components {
		_ = Registry.Register(component)
	}
}

// DefaultComponentRegistry maps implementation names to component prototypes.
// DefaultComponentRegistry 组件原型注册表
type DefaultComponentRegistry struct {
	// components implementation name -> prototype
	components map[string]types.Component
	// plugins plugin name -> components it registered
	plugins map[string][]types.Component
	sync.RWMutex
}

var _ types.ComponentRegistry = (*DefaultComponentRegistry)(nil)

// Register adds a prototype, its Type() must not be registered yet.
func (r *DefaultComponentRegistry) Register(component types.Component) error {
	r.Lock()
	defer r.Unlock()
	if r.components == nil {
		r.components = make(map[string]types.Component)
	}
	if _, ok := r.components[component.Type()]; ok {
		return errors.New("the component already exists. componentType=" + component.Type())
	}
	r.components[component.Type()] = component
	return nil
}

// RegisterPlugin loads the components exported by a Go plugin file.
// Nothing is registered when one of them clashes with an existing type.
func (r *DefaultComponentRegistry) RegisterPlugin(name string, file string) error {
	builder := &PluginComponentRegistry{name: name, file: file}
	if err := builder.Init(); err != nil {
		return err
	}
	components := builder.Components()

	r.Lock()
	defer r.Unlock()
	for _, component := range components {
		if _, ok := r.components[component.Type()]; ok {
			return errors.New("the component already exists. componentType=" + component.Type())
		}
	}
	if r.components == nil {
		r.components = make(map[string]types.Component)
	}
	if r.plugins == nil {
		r.plugins = make(map[string][]types.Component)
	}
	for _, component := range components {
		r.components[component.Type()] = component
	}
	r.plugins[name] = components
	return nil
}

// Unregister removes a component type, or every component of a plugin.
func (r *DefaultComponentRegistry) Unregister(componentType string) error {
	r.Lock()
	defer r.Unlock()
	removed := false
	if components, ok := r.plugins[componentType]; ok {
		for _, component := range components {
			delete(r.components, component.Type())
		}
		delete(r.plugins, componentType)
		removed = true
	}
	if _, ok := r.components[componentType]; ok {
		delete(r.components, componentType)
		removed = true
	}
	if !removed {
		return fmt.Errorf("%w. componentType=%s", types.ErrComponentNotFound, componentType)
	}
	return nil
}

// NewComponent creates a fresh instance of componentType.
func (r *DefaultComponentRegistry) NewComponent(componentType string) (types.Component, error) {
	r.RLock()
	defer r.RUnlock()
	component, ok := r.components[componentType]
	if !ok {
		return nil, fmt.Errorf("%w. componentType=%s", types.ErrComponentNotFound, componentType)
	}
	return component.New(), nil
}

// GetComponents returns a copy of the registered prototypes.
func (r *DefaultComponentRegistry) GetComponents() map[string]types.Component {
	r.RLock()
	defer r.RUnlock()
	components := make(map[string]types.Component, len(r.components))
	for k, v := range r.components {
		components[k] = v
	}
	return components
}

// PluginComponentRegistry loads components from a Go plugin.
type PluginComponentRegistry struct {
	name     string
	file     string
	registry types.PluginRegistry
}

// Init opens the plugin file and initializes its entry point.
func (p *PluginComponentRegistry) Init() error {
	pluginRegistry, err := loadPlugin(p.file)
	if err != nil {
		return err
	}
	if err := pluginRegistry.Init(); err != nil {
		return err
	}
	p.registry = pluginRegistry
	return nil
}

// Components returns the components provided by the plugin.
func (p *PluginComponentRegistry) Components() []types.Component {
	if p.registry != nil {
		return p.registry.Components()
	}
	return nil
}

func loadPlugin(file string) (types.PluginRegistry, error) {
	p, err := plugin.Open(file)
	if err != nil {
		return nil, err
	}
	sym, err := p.Lookup(PluginsSymbol)
	if err != nil {
		return nil, err
	}
	registry, ok := sym.(types.PluginRegistry)
	if !ok {
		return nil, errors.New("invalid plugin")
	}
	return registry, nil
}
