// Copyright 2014 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pathlock serializes operations on the same path. An
// in-memory filesystem can guard every file with its own sync.Mutex;
// providers here are arbitrary (possibly remote) stores, so instead
// of a mutex per resource we stripe a fixed table of mutexes by a hash
// of the path string, which bounds memory use; unrelated paths only
// contend when they hash to the same stripe.
package pathlock

import (
	"hash/fnv"
	"sync"
)

const stripes = 256

// Table is a fixed-size array of stripe locks.
type Table struct {
	mus [stripes]sync.Mutex
}

// New creates a Table.
func New() *Table {
	return &Table{}
}

func (t *Table) stripe(path string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return &t.mus[h.Sum32()%stripes]
}

// Lock acquires the stripe guarding path. Two different paths may
// still hash to the same stripe and block each other; callers must
// not assume per-path exclusivity, only that a PROPPATCH against a
// given path is serialized against concurrent PROPPATCHes that hash to
// the same stripe.
func (t *Table) Lock(path string) {
	t.stripe(path).Lock()
}

// Unlock releases the stripe guarding path.
func (t *Table) Unlock(path string) {
	t.stripe(path).Unlock()
}

// With runs fn while holding path's stripe.
func (t *Table) With(path string, fn func()) {
	t.Lock(path)
	defer t.Unlock(path)
	fn()
}
