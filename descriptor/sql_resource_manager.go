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
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/utils/str"
)

// DbScheme url scheme of descriptors stored in a database, e.g. db:///org.example.Tokenizer
const DbScheme = "db"

const defaultTable = "casflow_descriptor"

// SqlResourceManager reads descriptors from a table with the columns
// name, format and content. Names map to `db:///name`; a relative import
// location inside a stored descriptor names another row.
//
// SqlResourceManager 从数据库表读取描述符
type SqlResourceManager struct {
	db         *sql.DB
	driverName string
	table      string
}

var _ types.ResourceManager = (*SqlResourceManager)(nil)

// NewSqlResourceManager uses db, driverName selects the placeholder style (postgres uses $n)
func NewSqlResourceManager(db *sql.DB, driverName string) *SqlResourceManager {
	return &SqlResourceManager{db: db, driverName: driverName, table: defaultTable}
}

// OpenSqlResourceManager opens the database, e.g. OpenSqlResourceManager("mysql", "root:root@tcp(127.0.0.1:3306)/test")
func OpenSqlResourceManager(driverName, dsn string) (*SqlResourceManager, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSqlResourceManager(db, driverName), nil
}

// CreateTable creates the descriptor table if it does not exist
func (m *SqlResourceManager) CreateTable() error {
	_, err := m.db.Exec("CREATE TABLE IF NOT EXISTS " + m.table +
		" (name VARCHAR(255) PRIMARY KEY, format VARCHAR(16) NOT NULL, content TEXT NOT NULL)")
	return err
}

// Save stores the descriptor under name, replacing an existing row
func (m *SqlResourceManager) Save(name string, format string, content []byte) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	if _, err = tx.Exec(m.sql("DELETE FROM "+m.table+" WHERE name = ?"), name); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err = tx.Exec(m.sql("INSERT INTO "+m.table+" (name, format, content) VALUES (?, ?, ?)"), name, format, string(content)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SaveSpecifier encodes and stores the specifier
func (m *SqlResourceManager) SaveSpecifier(name string, spec types.ComponentSpecifier) error {
	content, err := Marshal(spec, FormatJson)
	if err != nil {
		return err
	}
	return m.Save(name, FormatJson, content)
}

// Close closes the database
func (m *SqlResourceManager) Close() error {
	return m.db.Close()
}

func (m *SqlResourceManager) sql(statement string) string {
	return str.ConvertDollarPlaceholder(statement, m.driverName)
}

func (m *SqlResourceManager) load(name string) (string, []byte, error) {
	var format, content string
	row := m.db.QueryRow(m.sql("SELECT format, content FROM "+m.table+" WHERE name = ?"), name)
	if err := row.Scan(&format, &content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, fmt.Errorf("%w: %s", ErrNameNotFound, name)
		}
		return "", nil, err
	}
	return format, []byte(content), nil
}

func nameOf(location *url.URL) (string, error) {
	if location.Scheme != DbScheme {
		return "", fmt.Errorf("unsupported url scheme %s", location.Scheme)
	}
	return strings.TrimPrefix(location.Path, "/"), nil
}

func (m *SqlResourceManager) ResolveName(name string) (*url.URL, error) {
	if _, _, err := m.load(name); err != nil {
		return nil, err
	}
	return &url.URL{Scheme: DbScheme, Path: "/" + name}, nil
}

func (m *SqlResourceManager) ParseSpecifier(location *url.URL) (types.ComponentSpecifier, error) {
	name, err := nameOf(location)
	if err != nil {
		return nil, err
	}
	format, content, err := m.load(name)
	if err != nil {
		return nil, err
	}
	spec, err := Unmarshal(content, format)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", location, err)
	}
	spec.SetSourceUrl(location)
	return spec, nil
}

func (m *SqlResourceManager) ParseFlowControllerSpecifier(location *url.URL) (*types.FlowControllerSpecifier, error) {
	name, err := nameOf(location)
	if err != nil {
		return nil, err
	}
	format, content, err := m.load(name)
	if err != nil {
		return nil, err
	}
	spec, err := UnmarshalFlowController(content, format)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", location, err)
	}
	spec.SetSourceUrl(location)
	return spec, nil
}

// Load parses the named descriptor
func (m *SqlResourceManager) Load(name string) (types.ComponentSpecifier, error) {
	location, err := m.ResolveName(name)
	if err != nil {
		return nil, err
	}
	return m.ParseSpecifier(location)
}
