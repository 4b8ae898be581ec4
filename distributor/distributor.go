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

// Package distributor routes requests across multiple mounted
// providers by longest matching path prefix, the way a reverse proxy
// picks a backend. There is no teacher precedent for this component;
// it is modeled on a multi-service DAV gateway mounting one handler
// per prefix.
package distributor

import (
	"errors"
	"sort"

	"github.com/nmvc/webdavcore/dpath"
	"github.com/nmvc/webdavcore/provider"
)

// ErrNoMount is returned by Route when no mount prefix covers the
// request path.
var ErrNoMount = errors.New("distributor: no mount covers path")

// ErrCrossProvider is returned by RouteCopyMove when src and dst
// resolve to different providers.
var ErrCrossProvider = errors.New("distributor: source and destination belong to different providers")

type mount struct {
	prefix   dpath.Path
	provider provider.Provider
}

// Distributor routes paths to mounted providers by longest matching
// prefix.
type Distributor struct {
	mounts []mount
}

// New creates an empty Distributor.
func New() *Distributor {
	return &Distributor{}
}

// Mount registers p to serve all paths at or beneath prefix. Mounting
// the same prefix twice replaces the earlier registration.
func (d *Distributor) Mount(prefix dpath.Path, p provider.Provider) {
	for i, m := range d.mounts {
		if m.prefix.Equal(prefix) {
			d.mounts[i].provider = p
			return
		}
	}
	d.mounts = append(d.mounts, mount{prefix: prefix, provider: p})
	sort.Slice(d.mounts, func(i, j int) bool {
		return len(d.mounts[i].prefix.Segments()) > len(d.mounts[j].prefix.Segments())
	})
}

// Route finds the mount whose prefix is the longest ancestor of (or
// equal to) p, and returns the selected provider plus p rewritten
// relative to that mount's prefix.
func (d *Distributor) Route(p dpath.Path) (provider.Provider, dpath.Path, error) {
	for _, m := range d.mounts {
		if m.prefix.Equal(p) {
			return m.provider, dpath.Root, nil
		}
		if rel, ok := p.StripPrefix(m.prefix); ok {
			return m.provider, rel, nil
		}
	}
	return nil, dpath.Path{}, ErrNoMount
}

// RouteCopyMove resolves both endpoints of a COPY/MOVE. If they
// resolve to different providers, it returns ErrCrossProvider — the
// caller maps this to 502 Bad Gateway.
func (d *Distributor) RouteCopyMove(src, dst dpath.Path) (p provider.Provider, relSrc, relDst dpath.Path, err error) {
	srcProvider, relSrc, err := d.Route(src)
	if err != nil {
		return nil, dpath.Path{}, dpath.Path{}, err
	}
	dstProvider, relDst, err := d.Route(dst)
	if err != nil {
		return nil, dpath.Path{}, dpath.Path{}, err
	}
	if srcProvider != dstProvider {
		return nil, dpath.Path{}, dpath.Path{}, ErrCrossProvider
	}
	return srcProvider, relSrc, relDst, nil
}
