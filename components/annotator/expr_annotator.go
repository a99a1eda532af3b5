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
// names:
//   kind: primitive
//   implementation: exprAnnotator
//   configuration:
//     forEach: Token
//     expr: "covered matches '^[A-Z]'"
//     typeName: Name
import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/components/base"
	"github.com/rulego/casflow/utils/maps"
)

func init() {
	Registry.Add(&ExprAnnotator{})
}

// ExprAnnotatorConfiguration 表达式标注器配置
type ExprAnnotatorConfiguration struct {
	// Expr boolean expression
	Expr string `validate:"required"`
	// ForEach annotation type to test one by one, empty tests the whole document
	ForEach string
	// TypeName type of the added annotations
	TypeName string `validate:"required"`
	// Features copied onto every added annotation
	Features map[string]interface{}
}

// ExprAnnotator adds a TypeName annotation wherever Expr evaluates to true.
// Without ForEach the expression is evaluated once and the annotation spans
// the whole document; with ForEach it is evaluated for every annotation of
// that type and the new annotation has the same span.
//
// The expression sees `id`, `text`, `language`, `view` and `annotations`
// (type -> list of {type, begin, end, features}); with ForEach also
// `annotation` and `covered`, the text it spans.
type ExprAnnotator struct {
	Config  ExprAnnotatorConfiguration
	program *vm.Program
}

func (x *ExprAnnotator) Type() string {
	return "exprAnnotator"
}

func (x *ExprAnnotator) New() types.Component {
	return &ExprAnnotator{}
}

func (x *ExprAnnotator) Init(_ types.ComponentContext, configuration types.Configuration) error {
	if err := maps.Decode(configuration, &x.Config); err != nil {
		return err
	}
	program, err := expr.Compile(x.Config.Expr, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return err
	}
	x.program = program
	return nil
}

// RequiredCasInterface covered text comes from the typed CAS
func (x *ExprAnnotator) RequiredCasInterface() string {
	return types.CasInterfaceJCas
}

func (x *ExprAnnotator) Process(abstractCas types.AbstractCas) error {
	jcas, ok := abstractCas.(types.JCas)
	if !ok {
		return base.ErrUnsupportedCas
	}
	evn := base.CasUtils.GetEnv(jcas.Cas())
	if x.Config.ForEach == "" {
		matched, err := x.run(evn)
		if err != nil {
			return err
		}
		if matched {
			jcas.Add(x.Config.TypeName, 0, len([]rune(jcas.DocumentText())), x.features())
		}
		return nil
	}
	for _, a := range jcas.Select(x.Config.ForEach) {
		evn["annotation"] = base.AnnotationToMap(a)
		evn["covered"] = jcas.CoveredText(a)
		matched, err := x.run(evn)
		if err != nil {
			return err
		}
		if matched {
			jcas.Add(x.Config.TypeName, a.Begin, a.End, x.features())
		}
	}
	return nil
}

func (x *ExprAnnotator) run(evn map[string]interface{}) (bool, error) {
	out, err := vm.Run(x.program, evn)
	if err != nil {
		return false, err
	}
	result, _ := out.(bool)
	return result, nil
}

func (x *ExprAnnotator) features() map[string]interface{} {
	if len(x.Config.Features) == 0 {
		return nil
	}
	features := make(map[string]interface{}, len(x.Config.Features))
	for k, v := range x.Config.Features {
		features[k] = v
	}
	return features
}

func (x *ExprAnnotator) Destroy() {
}
