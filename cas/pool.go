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

package cas

import (
	"errors"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/rulego/casflow/api/types"
)

// ErrPoolExhausted every CAS of a bounded pool is in use
var ErrPoolExhausted = errors.New("cas pool exhausted")

// Pool hands out empty CASes and recycles released ones.
// Pool CAS池，回收已释放的CAS
type Pool struct {
	// size maximum number of CASes in use, 0 means unbounded
	size  int
	lock  sync.Mutex
	free  []*base
	inUse int
	// releases number of effective releases
	releases int
}

var _ types.CasPool = (*Pool)(nil)

// NewPool creates a pool, size 0 means unbounded
func NewPool(size int) *Pool {
	return &Pool{size: size}
}

// EmptyCas returns an empty CAS bound to the default view
func (p *Pool) EmptyCas() (types.CAS, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.size > 0 && p.inUse >= p.size {
		return nil, ErrPoolExhausted
	}
	var b *base
	if n := len(p.free); n > 0 {
		b = p.free[n-1]
		p.free = p.free[:n-1]
		b.reset(newId())
	} else {
		b = newBase(newId(), p)
	}
	p.inUse++
	return &Cas{base: b, generation: b.generation, view: b.views[types.DefaultView]}, nil
}

func (p *Pool) release(c *Cas) {
	p.lock.Lock()
	defer p.lock.Unlock()
	b := c.base
	if c.generation != b.generation || b.released {
		return
	}
	b.released = true
	b.currentComponent = nil
	p.inUse--
	p.releases++
	p.free = append(p.free, b)
}

// InUse number of CASes handed out and not released
func (p *Pool) InUse() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.inUse
}

// Releases number of effective releases so far
func (p *Pool) Releases() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.releases
}

func newId() string {
	return uuid.Must(uuid.NewV4()).String()
}
