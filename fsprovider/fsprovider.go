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

// Package fsprovider is a disk-backed provider.Provider. It sandboxes
// all access inside a single directory tree via os.Root, so a client
// can never walk ".." out of its mount, and keeps dead properties in
// a JSON sidecar file alongside each resource.
package fsprovider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/nmvc/webdavcore/dpath"
	"github.com/nmvc/webdavcore/provider"
)

const sidecarSuffix = ".davprops.json"

// Disk is a Provider backed by a sandboxed directory tree.
type Disk struct {
	root *os.Root
	base string

	// propsMu serializes sidecar reads/writes; the dead-property files
	// are small and infrequently touched so one mutex for the whole
	// provider is sufficient.
	propsMu sync.Mutex
}

var _ provider.Provider = (*Disk)(nil)

// New opens dir as the provider's root. dir must already exist.
func New(dir string) (*Disk, error) {
	r, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	return &Disk{root: r, base: dir}, nil
}

// Close releases the underlying root handle.
func (d *Disk) Close() error {
	return d.root.Close()
}

func (d *Disk) native(p dpath.Path) string {
	if p.IsRoot() {
		return "."
	}
	return filepath.Join(p.Segments()...)
}

func (d *Disk) sidecar(p dpath.Path) string {
	if p.IsRoot() {
		return "." + sidecarSuffix
	}
	return d.native(p) + sidecarSuffix
}

func mapStatErr(err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return provider.ErrNotFound
	}
	if os.IsExist(err) {
		return provider.ErrExists
	}
	if errors.Is(err, syscall.ENOSPC) {
		return provider.ErrNoSpace
	}
	return err
}

func (d *Disk) Stat(ctx context.Context, p dpath.Path) (provider.Resource, error) {
	info, err := d.root.Stat(d.native(p))
	if err != nil {
		return provider.Resource{}, mapStatErr(err)
	}
	return toResource(p, info), nil
}

func toResource(p dpath.Path, info fs.FileInfo) provider.Resource {
	return provider.Resource{
		Path:         p,
		IsCollection: info.IsDir(),
		Size:         info.Size(),
		LastModified: info.ModTime(),
		Created:      info.ModTime(),
		DisplayName:  p.Base(),
	}
}

func (d *Disk) List(ctx context.Context, p dpath.Path) ([]provider.Resource, error) {
	info, err := d.root.Stat(d.native(p))
	if err != nil {
		return nil, mapStatErr(err)
	}
	if !info.IsDir() {
		return nil, provider.ErrNotCollection
	}

	f, err := d.root.Open(d.native(p))
	if err != nil {
		return nil, mapStatErr(err)
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	var out []provider.Resource
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, sidecarSuffix) {
			continue
		}
		child := p.Join(name)
		childInfo, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, toResource(child, childInfo))
	}
	return out, nil
}

type limitedFile struct {
	*os.File
}

func (d *Disk) Read(ctx context.Context, p dpath.Path) (provider.ReadCloser, error) {
	info, err := d.root.Stat(d.native(p))
	if err != nil {
		return nil, mapStatErr(err)
	}
	if info.IsDir() {
		return nil, provider.ErrIsCollection
	}
	f, err := d.root.Open(d.native(p))
	if err != nil {
		return nil, mapStatErr(err)
	}
	return limitedFile{f}, nil
}

func (d *Disk) Write(ctx context.Context, p dpath.Path, body io.Reader, overwrite bool) (provider.WriteResult, error) {
	if _, err := d.root.Stat(d.native(p.Parent())); err != nil {
		return 0, provider.ErrNoParent
	}

	result := provider.Created
	if info, err := d.root.Stat(d.native(p)); err == nil {
		if info.IsDir() {
			return 0, provider.ErrIsCollection
		}
		if !overwrite {
			return 0, provider.ErrExists
		}
		result = provider.Replaced
	}

	f, err := d.root.OpenFile(d.native(p), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, mapStatErr(err)
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return 0, mapStatErr(err)
	}
	return result, nil
}

func (d *Disk) Mkcol(ctx context.Context, p dpath.Path) error {
	if _, err := d.root.Stat(d.native(p.Parent())); err != nil {
		return provider.ErrNoParent
	}
	if _, err := d.root.Stat(d.native(p)); err == nil {
		return provider.ErrExists
	}
	return mapStatErr(d.root.Mkdir(d.native(p), 0o755))
}

func (d *Disk) Delete(ctx context.Context, p dpath.Path) (map[string]error, error) {
	info, err := d.root.Stat(d.native(p))
	if err != nil {
		return nil, mapStatErr(err)
	}
	d.removeSidecar(p)
	if !info.IsDir() {
		return nil, mapStatErr(d.root.Remove(d.native(p)))
	}
	return d.removeSubtree(p)
}

// removeSubtree recurses because os.Root does not expose a RemoveAll,
// using the same manual-recursion workaround.
func (d *Disk) removeSubtree(p dpath.Path) (map[string]error, error) {
	f, err := d.root.Open(d.native(p))
	if err != nil {
		return nil, mapStatErr(err)
	}
	entries, err := f.ReadDir(-1)
	f.Close()
	if err != nil {
		return nil, err
	}

	errs := make(map[string]error)
	for _, e := range entries {
		child := p.Join(e.Name())
		if e.IsDir() {
			if childErrs, err := d.removeSubtree(child); err != nil {
				errs[child.String()] = err
			} else {
				for k, v := range childErrs {
					errs[k] = v
				}
			}
			continue
		}
		d.removeSidecar(child)
		if err := d.root.Remove(d.native(child)); err != nil {
			errs[child.String()] = err
		}
	}
	if len(errs) == 0 {
		if err := d.root.Remove(d.native(p)); err != nil {
			errs[p.String()] = err
		}
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

func (d *Disk) Copy(ctx context.Context, src, dst dpath.Path, opts provider.CopyMoveOptions) (provider.WriteResult, error) {
	return d.copyOrMove(src, dst, opts, false)
}

func (d *Disk) Move(ctx context.Context, src, dst dpath.Path, opts provider.CopyMoveOptions) (provider.WriteResult, error) {
	return d.copyOrMove(src, dst, opts, true)
}

func (d *Disk) copyOrMove(src, dst dpath.Path, opts provider.CopyMoveOptions, move bool) (provider.WriteResult, error) {
	if src.Equal(dst) {
		return 0, provider.ErrForbidden
	}
	info, err := d.root.Stat(d.native(src))
	if err != nil {
		return 0, mapStatErr(err)
	}
	if _, err := d.root.Stat(d.native(dst.Parent())); err != nil {
		return 0, provider.ErrNoParent
	}

	result := provider.Created
	if _, err := d.root.Stat(d.native(dst)); err == nil {
		if !opts.Overwrite {
			return 0, provider.ErrExists
		}
		result = provider.Replaced
		if _, err := d.Delete(context.Background(), dst); err != nil {
			return 0, err
		}
	}

	if move {
		if err := d.renameNative(d.native(src), d.native(dst)); err != nil {
			return 0, err
		}
		d.renameSidecar(src, dst)
		return result, nil
	}

	depth := opts.Depth
	if info.IsDir() && depth == dpath.Depth0 {
		if err := d.root.Mkdir(d.native(dst), 0o755); err != nil {
			return 0, mapStatErr(err)
		}
		return result, nil
	}
	if err := d.copyTree(src, dst); err != nil {
		return 0, err
	}
	return result, nil
}

// renameNative uses os.Rename against the provider's real filesystem
// path, since os.Root has no Rename until a future Go release — the
// same limitation the Tryanks-fiber-webdav candidate worked around.
func (d *Disk) renameNative(oldRel, newRel string) error {
	return os.Rename(filepath.Join(d.base, oldRel), filepath.Join(d.base, newRel))
}

func (d *Disk) copyTree(src, dst dpath.Path) error {
	info, err := d.root.Stat(d.native(src))
	if err != nil {
		return mapStatErr(err)
	}
	if !info.IsDir() {
		in, err := d.root.Open(d.native(src))
		if err != nil {
			return mapStatErr(err)
		}
		defer in.Close()
		out, err := d.root.OpenFile(d.native(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return mapStatErr(err)
		}
		defer out.Close()
		if _, err := io.Copy(out, in); err != nil {
			return mapStatErr(err)
		}
		d.copySidecar(src, dst)
		return nil
	}

	if err := d.root.Mkdir(d.native(dst), 0o755); err != nil && !os.IsExist(err) {
		return mapStatErr(err)
	}
	f, err := d.root.Open(d.native(src))
	if err != nil {
		return mapStatErr(err)
	}
	entries, err := f.ReadDir(-1)
	f.Close()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), sidecarSuffix) {
			continue
		}
		if err := d.copyTree(src.Join(e.Name()), dst.Join(e.Name())); err != nil {
			return err
		}
	}
	return nil
}

type sidecar struct {
	Props map[string]string `json:"props"` // key is "space\x00local"
}

func propKey(name provider.PropName) string { return name.Space + "\x00" + name.Local }

func (d *Disk) readSidecar(p dpath.Path) sidecar {
	f, err := d.root.Open(d.sidecar(p))
	if err != nil {
		return sidecar{Props: map[string]string{}}
	}
	defer f.Close()
	var sc sidecar
	if err := json.NewDecoder(f).Decode(&sc); err != nil || sc.Props == nil {
		sc.Props = map[string]string{}
	}
	return sc
}

func (d *Disk) writeSidecar(p dpath.Path, sc sidecar) error {
	if len(sc.Props) == 0 {
		d.removeSidecar(p)
		return nil
	}
	f, err := d.root.OpenFile(d.sidecar(p), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(sc)
}

func (d *Disk) removeSidecar(p dpath.Path) {
	_ = d.root.Remove(d.sidecar(p))
}

func (d *Disk) copySidecar(src, dst dpath.Path) {
	sc := d.readSidecar(src)
	if len(sc.Props) > 0 {
		_ = d.writeSidecar(dst, sc)
	}
}

func (d *Disk) renameSidecar(src, dst dpath.Path) {
	sc := d.readSidecar(src)
	d.removeSidecar(src)
	if len(sc.Props) > 0 {
		_ = d.writeSidecar(dst, sc)
	}
}

func (d *Disk) GetDeadProp(ctx context.Context, p dpath.Path, name provider.PropName) (string, bool) {
	d.propsMu.Lock()
	defer d.propsMu.Unlock()
	sc := d.readSidecar(p)
	v, ok := sc.Props[propKey(name)]
	return v, ok
}

func (d *Disk) SetDeadProp(ctx context.Context, p dpath.Path, name provider.PropName, value string) error {
	d.propsMu.Lock()
	defer d.propsMu.Unlock()
	sc := d.readSidecar(p)
	sc.Props[propKey(name)] = value
	return d.writeSidecar(p, sc)
}

func (d *Disk) RemoveDeadProp(ctx context.Context, p dpath.Path, name provider.PropName) error {
	d.propsMu.Lock()
	defer d.propsMu.Unlock()
	sc := d.readSidecar(p)
	delete(sc.Props, propKey(name))
	return d.writeSidecar(p, sc)
}

func (d *Disk) ListDeadProps(ctx context.Context, p dpath.Path) (map[provider.PropName]string, error) {
	d.propsMu.Lock()
	defer d.propsMu.Unlock()
	sc := d.readSidecar(p)
	out := make(map[provider.PropName]string, len(sc.Props))
	for k, v := range sc.Props {
		for i := 0; i < len(k); i++ {
			if k[i] == 0 {
				out[provider.PropName{Space: k[:i], Local: k[i+1:]}] = v
				break
			}
		}
	}
	return out, nil
}
