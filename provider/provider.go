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

// Package provider defines the abstract resource store the core
// dispatches to. Concrete stores (filesystem, memory) implement this
// interface; the core only ever depends on it. Implementations must
// be safe for concurrent calls on disjoint paths — the lock manager,
// not the provider, is responsible for cross-call atomicity.
package provider

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/nmvc/webdavcore/dpath"
)

// Sentinel errors providers return; the root package maps these to
// HTTP status codes.
var (
	ErrNotFound      = errors.New("provider: not found")
	ErrExists        = errors.New("provider: already exists")
	ErrNotCollection = errors.New("provider: not a collection")
	ErrIsCollection  = errors.New("provider: is a collection")
	ErrNoParent      = errors.New("provider: parent does not exist")
	ErrForbidden     = errors.New("provider: forbidden")
	ErrNoSpace       = errors.New("provider: insufficient storage")
)

// Resource is a provider-returned view of a stored item.
type Resource struct {
	Path         dpath.Path
	IsCollection bool
	Size         int64
	ContentType  string
	LastModified time.Time
	Created      time.Time
	DisplayName  string
}

// ETag derives the resource's weak ETag from its size and
// modification time.
func (r Resource) ETag() string {
	return dpath.ETag(r.Size, r.LastModified)
}

// ReadCloser is a readable byte stream for GET/read operations.
type ReadCloser = io.ReadCloser

// WriteResult reports whether a PUT created a new resource (201) or
// replaced an existing one (204).
type WriteResult int

const (
	Created WriteResult = iota
	Replaced
)

// CopyMoveOptions controls COPY/MOVE semantics.
type CopyMoveOptions struct {
	Overwrite bool
	Depth     dpath.Depth // COPY only; MOVE is always effectively infinity
}

// Provider is the abstract WebDAV resource store.
type Provider interface {
	// Stat returns metadata for path, or ErrNotFound.
	Stat(ctx context.Context, path dpath.Path) (Resource, error)

	// List returns the immediate children of a collection, or
	// ErrNotFound / ErrNotCollection.
	List(ctx context.Context, path dpath.Path) ([]Resource, error)

	// Read opens path for reading, or ErrNotFound / ErrIsCollection.
	Read(ctx context.Context, path dpath.Path) (ReadCloser, error)

	// Write stores body at path, creating or replacing it.
	// overwrite=false with an existing resource is ErrExists.
	Write(ctx context.Context, path dpath.Path, body io.Reader, overwrite bool) (WriteResult, error)

	// Mkcol creates an empty collection at path. The parent must
	// already exist (ErrNoParent) and path must not (ErrExists).
	Mkcol(ctx context.Context, path dpath.Path) error

	// Delete removes path. For a collection, it removes the whole
	// subtree; per-child failures are returned in the map, keyed by
	// the failed child's path string.
	Delete(ctx context.Context, path dpath.Path) (map[string]error, error)

	// Copy duplicates src to dst. Depth applies to collections:
	// Depth0 copies just the collection itself.
	Copy(ctx context.Context, src, dst dpath.Path, opts CopyMoveOptions) (WriteResult, error)

	// Move relocates src to dst (always whole-subtree for
	// collections).
	Move(ctx context.Context, src, dst dpath.Path, opts CopyMoveOptions) (WriteResult, error)

	// GetDeadProp looks up a client-set property, opaque to the
	// provider.
	GetDeadProp(ctx context.Context, path dpath.Path, name PropName) (value string, ok bool)

	// SetDeadProp stores a client-set property.
	SetDeadProp(ctx context.Context, path dpath.Path, name PropName, value string) error

	// RemoveDeadProp deletes a client-set property. Removing an
	// absent property is not an error.
	RemoveDeadProp(ctx context.Context, path dpath.Path, name PropName) error

	// ListDeadProps enumerates every dead property stored at path,
	// for allprop/propname.
	ListDeadProps(ctx context.Context, path dpath.Path) (map[PropName]string, error)
}

// PropName mirrors wdxml.PropName without importing wdxml, keeping
// this interface's dependency surface minimal.
type PropName struct {
	Space string
	Local string
}

// Subtree walks the tree rooted at root to the given depth, via
// repeated List calls. Depth0 returns just root's own Stat; Depth1
// adds immediate children; DepthInfinity recurses fully. Providers
// may refuse infinite traversal with ErrForbidden per RFC 4918 §9.1.
func Subtree(ctx context.Context, p Provider, root dpath.Path, depth dpath.Depth) ([]Resource, error) {
	self, err := p.Stat(ctx, root)
	if err != nil {
		return nil, err
	}
	out := []Resource{self}
	if depth == dpath.Depth0 || !self.IsCollection {
		return out, nil
	}

	children, err := p.List(ctx, root)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		out = append(out, c)
		if depth == dpath.DepthInfinity && c.IsCollection {
			sub, err := Subtree(ctx, p, c.Path, dpath.DepthInfinity)
			if err != nil {
				return nil, err
			}
			out = append(out, sub[1:]...)
		}
	}
	return out, nil
}
