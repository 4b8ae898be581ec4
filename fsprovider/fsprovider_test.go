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

package fsprovider

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmvc/webdavcore/dpath"
	"github.com/nmvc/webdavcore/provider"
)

func newTestDisk(t *testing.T) *Disk {
	t.Helper()
	dir := t.TempDir()
	d, err := New(dir)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestWriteReadRoundTrip(t *testing.T) {
	d := newTestDisk(t)
	ctx := context.Background()
	p := dpath.MustNew("/file.txt")

	res, err := d.Write(ctx, p, bytes.NewBufferString("hello"), false)
	require.NoError(t, err)
	assert.Equal(t, provider.Created, res)

	rc, err := d.Read(ctx, p)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "hello", string(data))
}

func TestWriteWithoutOverwriteConflicts(t *testing.T) {
	d := newTestDisk(t)
	ctx := context.Background()
	p := dpath.MustNew("/file.txt")
	_, err := d.Write(ctx, p, bytes.NewBufferString("a"), false)
	require.NoError(t, err)

	_, err = d.Write(ctx, p, bytes.NewBufferString("b"), false)
	assert.ErrorIs(t, err, provider.ErrExists)
}

func TestMkcolAndList(t *testing.T) {
	d := newTestDisk(t)
	ctx := context.Background()
	require.NoError(t, d.Mkcol(ctx, dpath.MustNew("/dir")))
	_, err := d.Write(ctx, dpath.MustNew("/dir/a.txt"), bytes.NewBufferString("x"), false)
	require.NoError(t, err)

	children, err := d.List(ctx, dpath.MustNew("/dir"))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "a.txt", children[0].DisplayName)
}

func TestMoveAcrossDirectories(t *testing.T) {
	d := newTestDisk(t)
	ctx := context.Background()
	require.NoError(t, d.Mkcol(ctx, dpath.MustNew("/src")))
	require.NoError(t, d.Mkcol(ctx, dpath.MustNew("/dst")))
	_, err := d.Write(ctx, dpath.MustNew("/src/f.txt"), bytes.NewBufferString("x"), false)
	require.NoError(t, err)

	_, err = d.Move(ctx, dpath.MustNew("/src/f.txt"), dpath.MustNew("/dst/f.txt"), provider.CopyMoveOptions{})
	require.NoError(t, err)

	_, err = d.Stat(ctx, dpath.MustNew("/src/f.txt"))
	assert.ErrorIs(t, err, provider.ErrNotFound)
	_, err = d.Stat(ctx, dpath.MustNew("/dst/f.txt"))
	assert.NoError(t, err)
}

func TestCopyPreservesSource(t *testing.T) {
	d := newTestDisk(t)
	ctx := context.Background()
	_, err := d.Write(ctx, dpath.MustNew("/f.txt"), bytes.NewBufferString("x"), false)
	require.NoError(t, err)

	_, err = d.Copy(ctx, dpath.MustNew("/f.txt"), dpath.MustNew("/g.txt"), provider.CopyMoveOptions{})
	require.NoError(t, err)

	_, err = d.Stat(ctx, dpath.MustNew("/f.txt"))
	assert.NoError(t, err)
	_, err = d.Stat(ctx, dpath.MustNew("/g.txt"))
	assert.NoError(t, err)
}

func TestDeadPropsSurviveAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	name := provider.PropName{Space: "http://example.com/", Local: "author"}

	d1, err := New(dir)
	require.NoError(t, err)
	_, err = d1.Write(context.Background(), dpath.MustNew("/f.txt"), bytes.NewBufferString("x"), false)
	require.NoError(t, err)
	require.NoError(t, d1.SetDeadProp(context.Background(), dpath.MustNew("/f.txt"), name, "me"))
	require.NoError(t, d1.Close())

	d2, err := New(dir)
	require.NoError(t, err)
	defer d2.Close()
	v, ok := d2.GetDeadProp(context.Background(), dpath.MustNew("/f.txt"), name)
	assert.True(t, ok)
	assert.Equal(t, "me", v)
}

func TestDeleteRemovesSidecar(t *testing.T) {
	d := newTestDisk(t)
	ctx := context.Background()
	name := provider.PropName{Space: "ns", Local: "p"}
	_, err := d.Write(ctx, dpath.MustNew("/f.txt"), bytes.NewBufferString("x"), false)
	require.NoError(t, err)
	require.NoError(t, d.SetDeadProp(ctx, dpath.MustNew("/f.txt"), name, "v"))

	_, err = d.Delete(ctx, dpath.MustNew("/f.txt"))
	require.NoError(t, err)

	entries, err := d.List(ctx, dpath.Root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
