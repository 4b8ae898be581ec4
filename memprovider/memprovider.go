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

// Package memprovider is an in-memory provider.Provider. It keeps no
// durability guarantees and is intended for tests and small
// deployments, mirroring an in-memory filesystem package.
package memprovider

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/nmvc/webdavcore/dpath"
	"github.com/nmvc/webdavcore/provider"
)

type node struct {
	path    dpath.Path
	dir     bool
	created time.Time
	mtime   time.Time
	data    []byte
	props   map[provider.PropName]string
}

func (n *node) resource() provider.Resource {
	return provider.Resource{
		Path:         n.path,
		IsCollection: n.dir,
		Size:         int64(len(n.data)),
		LastModified: n.mtime,
		Created:      n.created,
		DisplayName:  n.path.Base(),
	}
}

// Memory is an in-memory Provider.
type Memory struct {
	mu    sync.Mutex
	nodes map[string]*node
}

var _ provider.Provider = (*Memory)(nil)

// New creates an empty Memory provider, seeded with the root
// collection.
func New() *Memory {
	m := &Memory{nodes: make(map[string]*node)}
	m.nodes["/"] = &node{path: dpath.Root, dir: true, created: time.Now(), mtime: time.Now(), props: map[provider.PropName]string{}}
	return m
}

func (m *Memory) lookup(p dpath.Path) (*node, error) {
	n, ok := m.nodes[p.String()]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return n, nil
}

func (m *Memory) Stat(ctx context.Context, p dpath.Path) (provider.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.lookup(p)
	if err != nil {
		return provider.Resource{}, err
	}
	return n.resource(), nil
}

func (m *Memory) List(ctx context.Context, p dpath.Path) ([]provider.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	if !n.dir {
		return nil, provider.ErrNotCollection
	}
	var out []provider.Resource
	for key, c := range m.nodes {
		if key == p.String() {
			continue
		}
		if c.path.Parent().Equal(p) {
			out = append(out, c.resource())
		}
	}
	return out, nil
}

type readCloser struct {
	*bytes.Reader
}

func (readCloser) Close() error { return nil }

func (m *Memory) Read(ctx context.Context, p dpath.Path) (provider.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.dir {
		return nil, provider.ErrIsCollection
	}
	return readCloser{bytes.NewReader(append([]byte(nil), n.data...))}, nil
}

func (m *Memory) Write(ctx context.Context, p dpath.Path, body io.Reader, overwrite bool) (provider.WriteResult, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	parent := p.Parent()
	if _, err := m.lookup(parent); err != nil {
		return 0, provider.ErrNoParent
	}

	n, exists := m.nodes[p.String()]
	if exists {
		if n.dir {
			return 0, provider.ErrIsCollection
		}
		if !overwrite {
			return 0, provider.ErrExists
		}
		n.data = data
		n.mtime = time.Now()
		return provider.Replaced, nil
	}

	m.nodes[p.String()] = &node{
		path:    p,
		created: time.Now(),
		mtime:   time.Now(),
		data:    data,
		props:   map[provider.PropName]string{},
	}
	return provider.Created, nil
}

func (m *Memory) Mkcol(ctx context.Context, p dpath.Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[p.String()]; exists {
		return provider.ErrExists
	}
	if _, err := m.lookup(p.Parent()); err != nil {
		return provider.ErrNoParent
	}
	m.nodes[p.String()] = &node{
		path:    p,
		dir:     true,
		created: time.Now(),
		mtime:   time.Now(),
		props:   map[provider.PropName]string{},
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, p dpath.Path) (map[string]error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	if !n.dir {
		delete(m.nodes, p.String())
		return nil, nil
	}

	errs := make(map[string]error)
	for key, c := range m.nodes {
		if key == p.String() || p.IsAncestorOf(c.path) {
			delete(m.nodes, key)
		}
	}
	return errs, nil
}

func (m *Memory) Copy(ctx context.Context, src, dst dpath.Path, opts provider.CopyMoveOptions) (provider.WriteResult, error) {
	return m.copyOrMove(src, dst, opts, false)
}

func (m *Memory) Move(ctx context.Context, src, dst dpath.Path, opts provider.CopyMoveOptions) (provider.WriteResult, error) {
	return m.copyOrMove(src, dst, opts, true)
}

func (m *Memory) copyOrMove(src, dst dpath.Path, opts provider.CopyMoveOptions, move bool) (provider.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if src.Equal(dst) {
		return 0, provider.ErrForbidden
	}
	srcNode, err := m.lookup(src)
	if err != nil {
		return 0, err
	}
	if _, err := m.lookup(dst.Parent()); err != nil {
		return 0, provider.ErrNoParent
	}

	result := provider.Created
	if existing, ok := m.nodes[dst.String()]; ok {
		if !opts.Overwrite {
			return 0, provider.ErrExists
		}
		result = provider.Replaced
		if existing.dir {
			for key, c := range m.nodes {
				if key == dst.String() || dst.IsAncestorOf(c.path) {
					delete(m.nodes, key)
				}
			}
		} else {
			delete(m.nodes, dst.String())
		}
	}

	depth := opts.Depth
	if move {
		depth = dpath.DepthInfinity
	}

	toMove := map[string]*node{src.String(): srcNode}
	if srcNode.dir && depth != dpath.Depth0 {
		for key, c := range m.nodes {
			if src.IsAncestorOf(c.path) {
				toMove[key] = c
			}
		}
	}

	for key, n := range toMove {
		rel, ok := n.path.StripPrefix(src)
		if !ok {
			continue
		}
		newPath := dst
		for _, seg := range rel.Segments() {
			newPath = newPath.Join(seg)
		}
		clone := &node{
			path:    newPath,
			dir:     n.dir,
			created: n.created,
			mtime:   n.mtime,
			data:    append([]byte(nil), n.data...),
			props:   cloneProps(n.props),
		}
		m.nodes[newPath.String()] = clone
		if move {
			delete(m.nodes, key)
		}
	}
	return result, nil
}

func cloneProps(p map[provider.PropName]string) map[provider.PropName]string {
	out := make(map[provider.PropName]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (m *Memory) GetDeadProp(ctx context.Context, p dpath.Path, name provider.PropName) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.lookup(p)
	if err != nil {
		return "", false
	}
	v, ok := n.props[name]
	return v, ok
}

func (m *Memory) SetDeadProp(ctx context.Context, p dpath.Path, name provider.PropName, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.lookup(p)
	if err != nil {
		return err
	}
	n.props[name] = value
	return nil
}

func (m *Memory) RemoveDeadProp(ctx context.Context, p dpath.Path, name provider.PropName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.lookup(p)
	if err != nil {
		return err
	}
	delete(n.props, name)
	return nil
}

func (m *Memory) ListDeadProps(ctx context.Context, p dpath.Path) (map[provider.PropName]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.lookup(p)
	if err != nil {
		return nil, err
	}
	return cloneProps(n.props), nil
}
