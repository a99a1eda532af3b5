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

package flow

import (
	"errors"
	"fmt"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/utils/js"
	"github.com/rulego/casflow/utils/maps"
	"github.com/rulego/casflow/utils/str"
)

// ErrMaxStepsExceeded the script kept routing a CAS past MaxSteps
var ErrMaxStepsExceeded = errors.New("script flow exceeded the maximum number of steps")

func init() {
	Registry.Add(&ScriptFlowController{})
}

// ScriptFlowConfiguration 脚本流程配置
type ScriptFlowConfiguration struct {
	// Script body of `function Next(doc, history)`. It returns the next key,
	// an array of keys for a parallel step, null or "" to finish, or
	// {drop: true} to finish and drop a CAS produced inside the aggregate.
	// doc has text, language, id and producedBy; history lists the keys
	// already invoked for the CAS.
	Script string `validate:"required"`
	// MaxSteps bounds the number of steps of one CAS
	MaxSteps int `default:"1000" validate:"gt=0"`
	// ContinueOnFailureKeys keys whose failures do not stop the CAS, `*` matches every key
	ContinueOnFailureKeys []string
}

// ScriptFlowController asks a JavaScript function for every step. Example:
//
//	if (history.length === 0) return doc.language === "de" ? "translate" : "tokenize";
//	if (history[history.length-1] === "translate") return "tokenize";
//	return null;
//
// ScriptFlowController 通过JS脚本决定CAS的下一步
type ScriptFlowController struct {
	ControllerBase
	Config   ScriptFlowConfiguration
	jsEngine *js.GojaJsEngine
	failure  failurePolicy
}

func (x *ScriptFlowController) Type() string {
	return "scriptFlow"
}

func (x *ScriptFlowController) New() types.Component {
	return &ScriptFlowController{}
}

func (x *ScriptFlowController) Init(ctx types.ComponentContext, configuration types.Configuration) error {
	if err := x.InitContext(ctx); err != nil {
		return err
	}
	if err := maps.Decode(configuration, &x.Config); err != nil {
		return err
	}
	jsScript := fmt.Sprintf("function Next(doc, history) { %s }", x.Config.Script)
	jsEngine, err := js.NewGojaJsEngine(ctx.Config(), jsScript, nil)
	if err != nil {
		return err
	}
	x.jsEngine = jsEngine
	x.failure = newFailurePolicy(x.Config.ContinueOnFailureKeys)
	return nil
}

func (x *ScriptFlowController) RequiredCasInterface() string {
	return types.CasInterfaceJCas
}

func (x *ScriptFlowController) ComputeFlow(cas types.AbstractCas) (types.Flow, error) {
	return x.newFlow(cas, "", false), nil
}

func (x *ScriptFlowController) Destroy() {
	if x.jsEngine != nil {
		x.jsEngine.Stop()
	}
}

func (x *ScriptFlowController) newFlow(cas types.AbstractCas, producedBy string, internallyCreated bool) *ScriptFlow {
	c, _ := types.CasOf(cas)
	return &ScriptFlow{controller: x, cas: c, producedBy: producedBy, internallyCreated: internallyCreated}
}

// ScriptFlow keeps the history of one CAS
type ScriptFlow struct {
	FlowBase
	controller        *ScriptFlowController
	cas               types.CAS
	producedBy        string
	history           []string
	internallyCreated bool
}

// document reads the CAS at every step, so the script sees what earlier delegates set
func (f *ScriptFlow) document() map[string]interface{} {
	doc := map[string]interface{}{
		"text":       "",
		"language":   types.LanguageUnspecified,
		"id":         "",
		"producedBy": f.producedBy,
	}
	if f.cas != nil {
		doc["text"] = f.cas.DocumentText()
		doc["language"] = f.cas.DocumentLanguage()
		doc["id"] = f.cas.Id()
	}
	return doc
}

func (f *ScriptFlow) Next() (types.Step, error) {
	if len(f.history) >= f.controller.Config.MaxSteps {
		return nil, fmt.Errorf("%w: %d", ErrMaxStepsExceeded, f.controller.Config.MaxSteps)
	}
	out, err := f.controller.jsEngine.Execute("Next", f.document(), append([]string{}, f.history...))
	if err != nil {
		return nil, err
	}
	switch v := out.(type) {
	case nil:
		return types.FinalStep{}, nil
	case string:
		if v == "" {
			return types.FinalStep{}, nil
		}
		f.history = append(f.history, v)
		return types.SimpleStep{Key: v}, nil
	case []interface{}:
		if len(v) == 0 {
			return types.FinalStep{}, nil
		}
		keys := make([]string, 0, len(v))
		for _, item := range v {
			keys = append(keys, str.ToString(item))
		}
		f.history = append(f.history, keys...)
		return types.ParallelStep{Keys: keys}, nil
	case map[string]interface{}:
		drop, _ := v["drop"].(bool)
		return types.FinalStep{ForceCasToBeDropped: drop && f.internallyCreated}, nil
	default:
		return nil, fmt.Errorf("%w: script returned %T", types.ErrUnsupportedStep, out)
	}
}

// NewCasProduced starts a fresh history for the new CAS, doc.producedBy names the producer
func (f *ScriptFlow) NewCasProduced(newCas types.AbstractCas, producedBy string) (types.Flow, error) {
	return f.controller.newFlow(newCas, producedBy, true), nil
}

func (f *ScriptFlow) ContinueOnFailure(failedKey string, _ error) bool {
	return f.controller.failure.continueOnFailure(failedKey)
}
