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

package schedule

import (
	"os"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/utils/fs"
)

// SourceDocumentType annotation naming the origin of a document read by a CollectionReader
const SourceDocumentType = "SourceDocumentInformation"

// CollectionReader iterates over the documents of a collection.
// 文档集合读取器
type CollectionReader interface {
	HasNext() bool
	// GetNext fills cas with the next document
	GetNext(cas types.CAS) error
	Close() error
}

// Document one entry of a SliceReader
type Document struct {
	Text     string
	Language string
	Uri      string
}

// SliceReader reads documents held in memory
type SliceReader struct {
	Documents []Document
	next      int
}

func (r *SliceReader) HasNext() bool {
	return r.next < len(r.Documents)
}

func (r *SliceReader) GetNext(cas types.CAS) error {
	doc := r.Documents[r.next]
	r.next++
	fill(cas, doc)
	return nil
}

func (r *SliceReader) Close() error {
	return nil
}

// FileReader reads every file matching a pattern, in path order
type FileReader struct {
	// Language set on every document, empty leaves it unspecified
	Language string
	files    []string
	next     int
}

// NewFileReader opens the files matching pattern, e.g. `data/*.txt`.
// Sub directories of the pattern directory are searched too.
func NewFileReader(pattern string, language string, excludedPatterns ...string) (*FileReader, error) {
	files, err := fs.GetFilePaths(pattern, excludedPatterns...)
	if err != nil {
		return nil, err
	}
	return &FileReader{Language: language, files: files}, nil
}

func (r *FileReader) HasNext() bool {
	return r.next < len(r.files)
}

func (r *FileReader) GetNext(cas types.CAS) error {
	file := r.files[r.next]
	r.next++
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	fill(cas, Document{Text: string(data), Language: r.Language, Uri: file})
	return nil
}

func (r *FileReader) Close() error {
	return nil
}

func fill(cas types.CAS, doc Document) {
	cas.SetDocumentText(doc.Text)
	if doc.Language != "" {
		cas.SetDocumentLanguage(doc.Language)
	}
	if doc.Uri != "" {
		cas.AddAnnotation(types.Annotation{
			Type:     SourceDocumentType,
			End:      len([]rune(doc.Text)),
			Features: map[string]interface{}{"uri": doc.Uri},
		})
	}
}
