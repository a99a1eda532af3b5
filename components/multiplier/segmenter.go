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

package multiplier

//描述符配置示例：
// seg:
//   kind: primitive
//   implementation: segmenter
//   operationalProperties:
//     outputsNewCases: true
//   configuration:
//     pattern: "[.!?]\\s+"
import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/components/base"
	"github.com/rulego/casflow/utils/maps"
)

// SourceDocumentType annotation added to every segment, it spans the whole segment
const SourceDocumentType = "SourceDocumentInformation"

// ErrNoPendingSegment Next was called without a pending segment
var ErrNoPendingSegment = errors.New("no pending segment")

func init() {
	Registry.Add(&Segmenter{})
}

// SegmenterConfiguration 分段器配置
type SegmenterConfiguration struct {
	// Pattern separates two segments, the match is not part of any segment
	Pattern string `default:"\\n+" validate:"required"`
	// KeepEmpty also emits segments that hold only white space
	KeepEmpty bool
	// MaxSegments stops after that many segments, 0 means no limit
	MaxSegments int `validate:"gte=0"`
}

type segment struct {
	text   string
	offset int
	index  int
}

// Segmenter splits the document text of the CAS it processes and emits one
// new CAS per segment. Each new CAS has the language of the input and a
// SourceDocumentInformation annotation with the features sourceId, index
// and offset (rune offset of the segment in the input).
//
// Segmenter 按分隔符把文档切分成多个新的CAS
type Segmenter struct {
	Config   SegmenterConfiguration
	ctx      types.ComponentContext
	regexp   *regexp.Regexp
	pending  []segment
	sourceId string
	language string
}

func (x *Segmenter) Type() string {
	return "segmenter"
}

func (x *Segmenter) New() types.Component {
	return &Segmenter{}
}

func (x *Segmenter) Init(ctx types.ComponentContext, configuration types.Configuration) error {
	if err := maps.Decode(configuration, &x.Config); err != nil {
		return err
	}
	re, err := regexp.Compile(x.Config.Pattern)
	if err != nil {
		return err
	}
	x.regexp = re
	x.ctx = ctx
	return nil
}

func (x *Segmenter) Process(abstractCas types.AbstractCas) error {
	cas, err := base.CasUtils.RawCas(abstractCas)
	if err != nil {
		return err
	}
	x.pending = x.pending[:0]
	x.sourceId = cas.Id()
	x.language = cas.DocumentLanguage()

	text := cas.DocumentText()
	start := 0
	add := func(end int) {
		part := text[start:end]
		if !x.Config.KeepEmpty && strings.TrimSpace(part) == "" {
			return
		}
		if x.Config.MaxSegments > 0 && len(x.pending) >= x.Config.MaxSegments {
			return
		}
		x.pending = append(x.pending, segment{
			text:   part,
			offset: utf8.RuneCountInString(text[:start]),
			index:  len(x.pending),
		})
	}
	for _, loc := range x.regexp.FindAllStringIndex(text, -1) {
		if loc[1] == loc[0] {
			continue
		}
		add(loc[0])
		start = loc[1]
	}
	add(len(text))
	return nil
}

func (x *Segmenter) HasNext() (bool, error) {
	return len(x.pending) > 0, nil
}

func (x *Segmenter) Next() (types.AbstractCas, error) {
	if len(x.pending) == 0 {
		return nil, ErrNoPendingSegment
	}
	s := x.pending[0]
	x.pending = x.pending[1:]

	out, err := x.ctx.EmptyCas()
	if err != nil {
		return nil, err
	}
	out.SetDocumentText(s.text)
	out.SetDocumentLanguage(x.language)
	out.AddAnnotation(types.Annotation{
		Type:  SourceDocumentType,
		Begin: 0,
		End:   utf8.RuneCountInString(s.text),
		Features: map[string]interface{}{
			"sourceId": x.sourceId,
			"index":    s.index,
			"offset":   s.offset,
		},
	})
	return out, nil
}

func (x *Segmenter) Destroy() {
	x.pending = nil
}
