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

package annotator

//描述符配置示例：
// upper:
//   kind: primitive
//   implementation: jsAnnotator
//   configuration:
//     jsScript: |
//       var out = [];
//       (annotations.Token || []).forEach(function (t) {
//         if (t.features && t.features.norm === "go") out.push({type: "Language", begin: t.begin, end: t.end});
//       });
//       return out;
import (
	"errors"
	"fmt"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/components/base"
	"github.com/rulego/casflow/utils/js"
	"github.com/rulego/casflow/utils/maps"
)

const (
	// JsAnnotateFuncTemplate wraps the configured script
	JsAnnotateFuncTemplate = "function Annotate(doc, annotations, vars) { %s }"
	// JsAnnotateFuncName function executed by the engine
	JsAnnotateFuncName = "Annotate"
)

// ErrJsAnnotateReturnFormat the script did not return an array of annotations
var ErrJsAnnotateReturnFormat = errors.New("return the value is not an array of {type, begin, end, features}")

func init() {
	Registry.Add(&JsAnnotator{})
}

// JsAnnotatorConfiguration JS标注器配置
type JsAnnotatorConfiguration struct {
	// JsScript body of `function Annotate(doc, annotations, vars)`
	JsScript string `validate:"required"`
	// Vars passed to the script as `vars`
	Vars map[string]interface{}
}

// JsAnnotator adds the annotations returned by a JavaScript function.
// doc holds id, text, language and view of the CAS view, annotations maps
// each annotation type to its annotations. The script returns an array of
// {type, begin, end, features}; null adds nothing.
//
// Global properties are available as `global.xx`, registered UDFs by name.
type JsAnnotator struct {
	Config   JsAnnotatorConfiguration
	jsEngine *js.GojaJsEngine
}

func (x *JsAnnotator) Type() string {
	return "jsAnnotator"
}

func (x *JsAnnotator) New() types.Component {
	return &JsAnnotator{}
}

func (x *JsAnnotator) Init(ctx types.ComponentContext, configuration types.Configuration) error {
	if err := maps.Decode(configuration, &x.Config); err != nil {
		return err
	}
	jsScript := fmt.Sprintf(JsAnnotateFuncTemplate, x.Config.JsScript)
	jsEngine, err := js.NewGojaJsEngine(ctx.Config(), jsScript, nil)
	if err != nil {
		return err
	}
	x.jsEngine = jsEngine
	return nil
}

func (x *JsAnnotator) Process(abstractCas types.AbstractCas) error {
	cas, err := base.CasUtils.RawCas(abstractCas)
	if err != nil {
		return err
	}
	evn := base.CasUtils.GetEnv(cas)
	annotations := evn[base.AnnotationsKey]
	delete(evn, base.AnnotationsKey)

	out, err := x.jsEngine.Execute(JsAnnotateFuncName, evn, annotations, x.Config.Vars)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	list, ok := out.([]interface{})
	if !ok {
		return ErrJsAnnotateReturnFormat
	}
	added := make([]types.Annotation, 0, len(list))
	for _, item := range list {
		a, err := toAnnotation(item)
		if err != nil {
			return err
		}
		added = append(added, a)
	}
	for _, a := range added {
		cas.AddAnnotation(a)
	}
	return nil
}

func (x *JsAnnotator) Destroy() {
	if x.jsEngine != nil {
		x.jsEngine.Stop()
	}
}

func toAnnotation(item interface{}) (types.Annotation, error) {
	m, ok := item.(map[string]interface{})
	if !ok {
		return types.Annotation{}, ErrJsAnnotateReturnFormat
	}
	var a types.Annotation
	if err := maps.Map2Struct(m, &a); err != nil {
		return types.Annotation{}, fmt.Errorf("%w: %w", ErrJsAnnotateReturnFormat, err)
	}
	if a.Type == "" || a.Begin > a.End {
		return types.Annotation{}, fmt.Errorf("%w: %v", ErrJsAnnotateReturnFormat, m)
	}
	return a, nil
}
