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

package descriptor

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rulego/casflow/api/types"
)

// ErrNameNotFound a logical import name matched no descriptor
var ErrNameNotFound = errors.New("descriptor name not found")

var nameExtensions = []string{".yaml", ".yml", ".json"}

// FileResourceManager reads descriptors from the file system. Logical names
// such as `org.example.Tokenizer` are looked up as `org/example/Tokenizer.yaml`
// (or .yml, .json) under each data path, in order.
type FileResourceManager struct {
	DataPath []string
}

var _ types.ResourceManager = (*FileResourceManager)(nil)

// NewFileResourceManager creates a resource manager searching the data paths
func NewFileResourceManager(dataPath ...string) *FileResourceManager {
	return &FileResourceManager{DataPath: dataPath}
}

// FileUrl returns the file URL of a path
func FileUrl(file string) (*url.URL, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
}

func (m *FileResourceManager) ResolveName(name string) (*url.URL, error) {
	relative := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))
	for _, dir := range m.DataPath {
		for _, ext := range nameExtensions {
			candidate := filepath.Join(dir, relative+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return FileUrl(candidate)
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNameNotFound, name)
}

func (m *FileResourceManager) read(location *url.URL) ([]byte, error) {
	if location.Scheme != "" && location.Scheme != "file" {
		return nil, fmt.Errorf("unsupported url scheme %s", location.Scheme)
	}
	return os.ReadFile(filepath.FromSlash(location.Path))
}

func (m *FileResourceManager) ParseSpecifier(location *url.URL) (types.ComponentSpecifier, error) {
	data, err := m.read(location)
	if err != nil {
		return nil, err
	}
	spec, err := Unmarshal(data, FormatOf(location.Path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", location, err)
	}
	spec.SetSourceUrl(location)
	return spec, nil
}

func (m *FileResourceManager) ParseFlowControllerSpecifier(location *url.URL) (*types.FlowControllerSpecifier, error) {
	data, err := m.read(location)
	if err != nil {
		return nil, err
	}
	spec, err := UnmarshalFlowController(data, FormatOf(location.Path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", location, err)
	}
	spec.SetSourceUrl(location)
	return spec, nil
}

// LoadFile parses the descriptor file and records its URL as source URL
func LoadFile(file string) (types.ComponentSpecifier, error) {
	location, err := FileUrl(file)
	if err != nil {
		return nil, err
	}
	return (&FileResourceManager{}).ParseSpecifier(location)
}
