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

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/cas"
	"github.com/rulego/casflow/utils/str"
)

// composeMappings chains the mappings of a delegate inside its aggregate with
// the mappings of the aggregate inside its parent, so that the result maps
// delegate views straight onto views of the outermost CAS.
//
// 组合委托组件映射与父聚合映射，得到委托视图到最外层视图的映射
func composeMappings(own, parent map[string]string) map[string]string {
	if len(parent) == 0 {
		return own
	}
	result := make(map[string]string, len(own)+len(parent))
	for componentView, aggregateView := range own {
		if outer, ok := parent[aggregateView]; ok {
			result[componentView] = outer
		} else {
			result[componentView] = aggregateView
		}
	}
	for aggregateView, outer := range parent {
		if _, ok := own[aggregateView]; !ok {
			result[aggregateView] = outer
		}
	}
	return result
}

// viewFor binds info to the CAS and returns what the component sees: the base
// CAS for sofa-aware components, its mapped default view otherwise.
// A mapped default view that does not exist yet is created.
func viewFor(c types.CAS, info *types.ComponentInfo, sofaAware bool) (types.CAS, error) {
	base := c.BaseCas()
	base.SetCurrentComponent(info)
	if sofaAware {
		return base, nil
	}
	view, err := base.View(types.DefaultView)
	if errors.Is(err, cas.ErrViewNotFound) {
		return base.CreateView(types.DefaultView)
	}
	return view, err
}

// processGlobalPlaceholders replaces ${global.key} in string values of the
// configuration with config properties. The input is not modified.
func processGlobalPlaceholders(config types.Config, configuration types.Configuration) types.Configuration {
	if configuration == nil {
		return types.Configuration{}
	}
	result := make(types.Configuration, len(configuration))
	for k, v := range configuration {
		result[k] = replaceGlobal(config.Properties, v)
	}
	return result
}

func replaceGlobal(properties map[string]string, value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return str.SprintfVar(v, types.Global+".", properties)
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, item := range v {
			result[k] = replaceGlobal(properties, item)
		}
		return result
	case types.Configuration:
		result := make(types.Configuration, len(v))
		for k, item := range v {
			result[k] = replaceGlobal(properties, item)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = replaceGlobal(properties, item)
		}
		return result
	default:
		return value
	}
}
