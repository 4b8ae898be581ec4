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

package memprovider

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

func TestWriteCreatesThenReplaces(t *testing.T) {
	m := New()
	ctx := context.Background()
	p := dpath.MustNew("/file.txt")

	res, err := m.Write(ctx, p, bytes.NewBufferString("hello"), false)
	require.NoError(t, err)
	assert.Equal(t, provider.Created, res)

	_, err = m.Write(ctx, p, bytes.NewBufferString("again"), false)
	assert.ErrorIs(t, err, provider.ErrExists)

	res, err = m.Write(ctx, p, bytes.NewBufferString("again"), true)
	require.NoError(t, err)
	assert.Equal(t, provider.Replaced, res)

	rc, err := m.Read(ctx, p)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "again", string(data))
}

func TestMkcolRequiresParent(t *testing.T) {
	m := New()
	ctx := context.Background()
	_, err := m.Write(ctx, dpath.MustNew("/a/b.txt"), bytes.NewBufferString("x"), false)
	assert.ErrorIs(t, err, provider.ErrNoParent)

	require.NoError(t, m.Mkcol(ctx, dpath.MustNew("/a")))
	assert.ErrorIs(t, m.Mkcol(ctx, dpath.MustNew("/a")), provider.ErrExists)
}

func TestDeleteRemovesSubtree(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.Mkcol(ctx, dpath.MustNew("/a")))
	_, err := m.Write(ctx, dpath.MustNew("/a/b.txt"), bytes.NewBufferString("x"), false)
	require.NoError(t, err)

	_, err = m.Delete(ctx, dpath.MustNew("/a"))
	require.NoError(t, err)

	_, err = m.Stat(ctx, dpath.MustNew("/a/b.txt"))
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestCopySubtreeDepthInfinity(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.Mkcol(ctx, dpath.MustNew("/a")))
	_, err := m.Write(ctx, dpath.MustNew("/a/b.txt"), bytes.NewBufferString("x"), false)
	require.NoError(t, err)

	_, err = m.Copy(ctx, dpath.MustNew("/a"), dpath.MustNew("/c"), provider.CopyMoveOptions{Depth: dpath.DepthInfinity})
	require.NoError(t, err)

	rc, err := m.Read(ctx, dpath.MustNew("/c/b.txt"))
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "x", string(data))

	// original untouched
	_, err = m.Stat(ctx, dpath.MustNew("/a/b.txt"))
	assert.NoError(t, err)
}

func TestMoveRelocatesSubtree(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.Mkcol(ctx, dpath.MustNew("/a")))
	_, err := m.Write(ctx, dpath.MustNew("/a/b.txt"), bytes.NewBufferString("x"), false)
	require.NoError(t, err)

	_, err = m.Move(ctx, dpath.MustNew("/a"), dpath.MustNew("/c"), provider.CopyMoveOptions{})
	require.NoError(t, err)

	_, err = m.Stat(ctx, dpath.MustNew("/a"))
	assert.ErrorIs(t, err, provider.ErrNotFound)

	_, err = m.Stat(ctx, dpath.MustNew("/c/b.txt"))
	assert.NoError(t, err)
}

func TestDeadPropsRoundTrip(t *testing.T) {
	m := New()
	ctx := context.Background()
	_, err := m.Write(ctx, dpath.MustNew("/f.txt"), bytes.NewBufferString("x"), false)
	require.NoError(t, err)

	name := provider.PropName{Space: "http://example.com/", Local: "author"}
	require.NoError(t, m.SetDeadProp(ctx, dpath.MustNew("/f.txt"), name, "me"))

	v, ok := m.GetDeadProp(ctx, dpath.MustNew("/f.txt"), name)
	assert.True(t, ok)
	assert.Equal(t, "me", v)

	require.NoError(t, m.RemoveDeadProp(ctx, dpath.MustNew("/f.txt"), name))
	_, ok = m.GetDeadProp(ctx, dpath.MustNew("/f.txt"), name)
	assert.False(t, ok)
}

func TestSubtreeWalksDepths(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.Mkcol(ctx, dpath.MustNew("/a")))
	_, err := m.Write(ctx, dpath.MustNew("/a/b.txt"), bytes.NewBufferString("x"), false)
	require.NoError(t, err)
	require.NoError(t, m.Mkcol(ctx, dpath.MustNew("/a/c")))
	_, err = m.Write(ctx, dpath.MustNew("/a/c/d.txt"), bytes.NewBufferString("y"), false)
	require.NoError(t, err)

	zero, err := provider.Subtree(ctx, m, dpath.MustNew("/a"), dpath.Depth0)
	require.NoError(t, err)
	assert.Len(t, zero, 1)

	one, err := provider.Subtree(ctx, m, dpath.MustNew("/a"), dpath.Depth1)
	require.NoError(t, err)
	assert.Len(t, one, 3)

	inf, err := provider.Subtree(ctx, m, dpath.MustNew("/a"), dpath.DepthInfinity)
	require.NoError(t, err)
	assert.Len(t, inf, 4)
}
