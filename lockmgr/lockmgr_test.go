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

package lockmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmvc/webdavcore/dpath"
)

func newTestManager() *Manager {
	m := New(Config{MaxTimeout: time.Hour, DefaultTimeout: time.Minute, SweepInterval: time.Hour})
	return m
}

func TestExclusiveExcludesEverything(t *testing.T) {
	m := newTestManager()
	defer m.Close()
	now := time.Unix(0, 0)

	root := dpath.MustNew("/a")
	_, err := m.Create(now, root, Exclusive, dpath.DepthInfinity, "me", time.Minute)
	require.NoError(t, err)

	_, err = m.Create(now, root, Shared, dpath.Depth0, "you", time.Minute)
	var conflict *ErrConflict
	assert.ErrorAs(t, err, &conflict)
}

func TestSharedLocksCoexist(t *testing.T) {
	m := newTestManager()
	defer m.Close()
	now := time.Unix(0, 0)

	root := dpath.MustNew("/a")
	_, err := m.Create(now, root, Shared, dpath.Depth0, "me", time.Minute)
	require.NoError(t, err)
	_, err = m.Create(now, root, Shared, dpath.Depth0, "you", time.Minute)
	require.NoError(t, err)
}

func TestExclusiveCoverIncludesDescendants(t *testing.T) {
	m := newTestManager()
	defer m.Close()
	now := time.Unix(0, 0)

	root := dpath.MustNew("/a")
	child := dpath.MustNew("/a/b")
	_, err := m.Create(now, root, Exclusive, dpath.DepthInfinity, "me", time.Minute)
	require.NoError(t, err)

	_, err = m.Create(now, child, Exclusive, dpath.Depth0, "you", time.Minute)
	var conflict *ErrConflict
	assert.ErrorAs(t, err, &conflict)
}

func TestRefreshExtendsExpiry(t *testing.T) {
	m := newTestManager()
	defer m.Close()
	t0 := time.Unix(1000, 0)

	root := dpath.MustNew("/a")
	l, err := m.Create(t0, root, Exclusive, dpath.DepthInfinity, "me", 60*time.Second)
	require.NoError(t, err)

	t40 := t0.Add(40 * time.Second)
	refreshed, err := m.Refresh(t40, l.Token, root, 60*time.Second)
	require.NoError(t, err)
	assert.Equal(t, t40.Add(60*time.Second), refreshed.ExpiresAt)

	t120 := t0.Add(120 * time.Second)
	assert.Empty(t, m.ActiveLocksFor(t120, root))
}

func TestUnlockRemovesLock(t *testing.T) {
	m := newTestManager()
	defer m.Close()
	now := time.Unix(0, 0)
	root := dpath.MustNew("/a")

	l, err := m.Create(now, root, Exclusive, dpath.DepthInfinity, "me", time.Minute)
	require.NoError(t, err)
	assert.True(t, m.Unlock(now, l.Token))
	assert.False(t, m.Unlock(now, l.Token))
}

func TestEvaluateRequiresMatchingToken(t *testing.T) {
	m := newTestManager()
	defer m.Close()
	now := time.Unix(0, 0)
	root := dpath.MustNew("/a")

	l, err := m.Create(now, root, Exclusive, dpath.DepthInfinity, "me", time.Minute)
	require.NoError(t, err)

	err = m.Evaluate(now, dpath.MustNew("/a/b"), nil, nil)
	var conflict *ErrConflict
	assert.ErrorAs(t, err, &conflict)

	err = m.Evaluate(now, dpath.MustNew("/a/b"), []Condition{{Token: l.Token}}, nil)
	assert.NoError(t, err)
}

func TestEvaluateEtagMismatch(t *testing.T) {
	m := newTestManager()
	defer m.Close()
	now := time.Unix(0, 0)
	root := dpath.MustNew("/a")

	l, err := m.Create(now, root, Exclusive, dpath.DepthInfinity, "me", time.Minute)
	require.NoError(t, err)

	etagOf := func(p dpath.Path) (string, bool) { return "W/\"abc\"", true }
	err = m.Evaluate(now, root, []Condition{{Token: l.Token, ETag: "W/\"zzz\""}}, etagOf)
	var precond *ErrPrecondition
	assert.ErrorAs(t, err, &precond)
}

func TestTwoConcurrentExclusiveOneWins(t *testing.T) {
	m := newTestManager()
	defer m.Close()
	now := time.Unix(0, 0)
	root := dpath.MustNew("/race")

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := m.Create(now, root, Exclusive, dpath.Depth0, "racer", time.Minute)
			results <- err
		}()
	}
	r1, r2 := <-results, <-results
	successes := 0
	for _, r := range []error{r1, r2} {
		if r == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}
