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

// Package lockmgr is the process-wide WebDAV lock table: it enforces
// shared/exclusive conflict rules, issues opaque tokens, evaluates
// If-header preconditions, and expires locks on a background sweep.
package lockmgr

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nmvc/webdavcore/dpath"
)

// Scope is the lock's sharing mode.
type Scope int

const (
	Exclusive Scope = iota
	Shared
)

func (s Scope) String() string {
	if s == Shared {
		return "shared"
	}
	return "exclusive"
}

// Lock is a single granted lock.
type Lock struct {
	Token     string
	Root      dpath.Path
	Scope     Scope
	Depth     dpath.Depth
	Owner     string // verbatim XML
	ExpiresAt time.Time
	CreatedAt time.Time
}

// covers reports whether this lock's cover includes p:
// {root} for depth 0, or {root and its descendants} for infinity.
func (l *Lock) covers(p dpath.Path) bool {
	if l.Root.Equal(p) {
		return true
	}
	return l.Depth == dpath.DepthInfinity && l.Root.IsAncestorOf(p)
}

func (l *Lock) expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// ErrNoSuchLock is returned by Refresh for an unknown or expired
// token, or one whose lock is rooted at a different path.
type ErrNoSuchLock struct{ Token string }

func (e *ErrNoSuchLock) Error() string { return fmt.Sprintf("lockmgr: no such lock %q", e.Token) }

// ErrConflict is returned by Create when a requested lock would
// conflict with an existing one.
type ErrConflict struct{ With *Lock }

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("lockmgr: conflicts with %s lock on %s", e.With.Scope, e.With.Root)
}

// ErrPrecondition is returned by Evaluate when a condition names a
// covering lock's token but its etag does not match the resource's
// current etag.
type ErrPrecondition struct{ Reason string }

func (e *ErrPrecondition) Error() string { return "lockmgr: precondition failed: " + e.Reason }

// Condition mirrors the (token, etag) pairs extracted from an
// If-header by the request parser.
type Condition struct {
	Token string
	ETag  string // empty if not present
}

// Config holds the lock manager's tunables.
type Config struct {
	MaxTimeout     time.Duration
	DefaultTimeout time.Duration
	SweepInterval  time.Duration
}

// DefaultConfig caps lock timeouts at 5m, uses 1m when no timeout is
// requested, and sweeps once a second.
var DefaultConfig = Config{
	MaxTimeout:     5 * time.Minute,
	DefaultTimeout: time.Minute,
	SweepInterval:  time.Second,
}

// Manager is the process-wide lock table. The zero value is not
// usable; use New.
type Manager struct {
	cfg Config

	mu     sync.Mutex
	byPath map[string][]*Lock // keyed by Root.String(); multiple only for shared locks
	byTok  map[string]*Lock

	stop chan struct{}
	done chan struct{}
}

// New creates a Manager and starts its background expiry sweep.
func New(cfg Config) *Manager {
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = DefaultConfig.MaxTimeout
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultConfig.DefaultTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig.SweepInterval
	}
	m := &Manager{
		cfg:    cfg,
		byPath: make(map[string][]*Lock),
		byTok:  make(map[string]*Lock),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Close stops the background sweep. Granted locks are not affected.
func (m *Manager) Close() {
	close(m.stop)
	<-m.done
}

func (m *Manager) sweepLoop() {
	defer close(m.done)
	t := time.NewTicker(m.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-t.C:
			m.Sweep(now)
		}
	}
}

// Sweep removes every lock whose ExpiresAt is at or before now. It is
// exported so tests can drive expiration deterministically instead of
// waiting on the background ticker.
func (m *Manager) Sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(now)
}

func (m *Manager) sweepLocked(now time.Time) {
	for root, locks := range m.byPath {
		kept := locks[:0]
		for _, l := range locks {
			if l.expired(now) {
				delete(m.byTok, l.Token)
				continue
			}
			kept = append(kept, l)
		}
		if len(kept) == 0 {
			delete(m.byPath, root)
		} else {
			m.byPath[root] = kept
		}
	}
}

// clampTimeout bounds a requested duration to [0, MaxTimeout],
// substituting DefaultTimeout for a non-positive request.
func (m *Manager) clampTimeout(requested time.Duration) time.Duration {
	if requested <= 0 {
		requested = m.cfg.DefaultTimeout
	}
	if requested > m.cfg.MaxTimeout {
		requested = m.cfg.MaxTimeout
	}
	return requested
}

// conflicts reports whether two locks on overlapping roots cannot
// coexist: R conflicts
// with L iff their covers overlap at p and at least one is exclusive.
func conflicts(existing *Lock, reqRoot dpath.Path, reqDepth dpath.Depth, reqScope Scope) bool {
	if existing.Scope == Shared && reqScope == Shared {
		return false
	}
	if existing.covers(reqRoot) {
		return true
	}
	// R covers L.root?
	if reqDepth == dpath.DepthInfinity && reqRoot.IsAncestorOf(existing.Root) {
		return true
	}
	return reqRoot.Equal(existing.Root)
}

// Create grants a new lock, or returns ErrConflict if one of the
// existing locks conflicts.
func (m *Manager) Create(now time.Time, root dpath.Path, scope Scope, depth dpath.Depth, owner string, timeout time.Duration) (*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(now)

	for _, locks := range m.byPath {
		for _, l := range locks {
			if conflicts(l, root, depth, scope) {
				return nil, &ErrConflict{With: l}
			}
		}
	}

	l := &Lock{
		Token:     "opaquelocktoken:" + uuid.NewString(),
		Root:      root,
		Scope:     scope,
		Depth:     depth,
		Owner:     owner,
		CreatedAt: now,
		ExpiresAt: now.Add(m.clampTimeout(timeout)),
	}
	m.byTok[l.Token] = l
	key := root.String()
	m.byPath[key] = append(m.byPath[key], l)
	return l, nil
}

// Refresh resets a lock's expiry (LOCK without a body, If-header
// identifying the token).
func (m *Manager) Refresh(now time.Time, token string, root dpath.Path, timeout time.Duration) (*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(now)

	l, ok := m.byTok[token]
	if !ok {
		return nil, &ErrNoSuchLock{Token: token}
	}
	if !l.Root.Equal(root) {
		return nil, &ErrNoSuchLock{Token: token}
	}
	l.ExpiresAt = now.Add(m.clampTimeout(timeout))
	return l, nil
}

// Unlock removes a lock by token. ok is false if no live lock has
// that token.
func (m *Manager) Unlock(now time.Time, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(now)

	l, ok := m.byTok[token]
	if !ok {
		return false
	}
	delete(m.byTok, token)
	key := l.Root.String()
	locks := m.byPath[key]
	for i, v := range locks {
		if v == l {
			locks = append(locks[:i], locks[i+1:]...)
			break
		}
	}
	if len(locks) == 0 {
		delete(m.byPath, key)
	} else {
		m.byPath[key] = locks
	}
	return true
}

// covering returns every live lock whose cover includes p.
func (m *Manager) covering(now time.Time, p dpath.Path) []*Lock {
	m.sweepLocked(now)
	var out []*Lock
	for _, locks := range m.byPath {
		for _, l := range locks {
			if l.covers(p) {
				out = append(out, l)
			}
		}
	}
	return out
}

// ActiveLocksFor returns the live locks whose cover includes p, for
// rendering lockdiscovery.
func (m *Manager) ActiveLocksFor(now time.Time, p dpath.Path) []*Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.covering(now, p)
}

// HasToken reports whether token names a live lock covering p.
func (m *Manager) HasToken(now time.Time, p dpath.Path, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(now)
	l, ok := m.byTok[token]
	return ok && l.covers(p)
}

// ETagFunc looks up a resource's current ETag, for evaluating etag
// conditions in an If-header.
type ETagFunc func(p dpath.Path) (string, bool)

// Evaluate checks the write precondition: every live lock covering p
// must be named by the token of at least one submitted condition (and
// that condition's etag, if it carries one, must match p's current
// etag). A covering lock that no condition names yields ErrConflict;
// an etag mismatch yields ErrPrecondition. An empty conds with
// covering locks present is always denied.
func (m *Manager) Evaluate(now time.Time, p dpath.Path, conds []Condition, etagOf ETagFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	covering := m.covering(now, p)
	if len(covering) == 0 {
		return nil
	}

	for _, l := range covering {
		satisfied := false
		for _, c := range conds {
			if c.Token != l.Token {
				continue
			}
			if c.ETag == "" {
				satisfied = true
				break
			}
			if etagOf != nil {
				if cur, ok := etagOf(p); ok && cur == c.ETag {
					satisfied = true
					break
				}
				return &ErrPrecondition{Reason: "etag mismatch"}
			}
		}
		if !satisfied {
			return &ErrConflict{With: l}
		}
	}
	return nil
}
