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

package dpath

import (
	"testing"
	"time"
)

func TestNewRejectsDotDot(t *testing.T) {
	if _, err := New("/a/../b"); err == nil {
		t.Error("expected error for .. segment")
	}
	if _, err := New("relative"); err == nil {
		t.Error("expected error for non-absolute path")
	}
}

func TestRootParentIsItself(t *testing.T) {
	if !Root.Parent().Equal(Root) {
		t.Error("root's parent should be itself")
	}
}

func TestIsAncestorOf(t *testing.T) {
	a := MustNew("/a")
	ab := MustNew("/a/b")
	if !a.IsAncestorOf(ab) {
		t.Error("/a should be an ancestor of /a/b")
	}
	if ab.IsAncestorOf(a) {
		t.Error("/a/b should not be an ancestor of /a")
	}
	if a.IsAncestorOf(a) {
		t.Error("a path is not its own ancestor")
	}
	if !Root.IsAncestorOf(a) {
		t.Error("root should be an ancestor of every non-root path")
	}
}

func TestStripPrefixRoundTrip(t *testing.T) {
	p := MustNew("/a")
	full := MustNew("/a/b/c")
	child, ok := full.StripPrefix(p)
	if !ok {
		t.Fatal("expected StripPrefix to succeed")
	}
	if !p.Join(child.Segments()[0]).Join(child.Segments()[1]).Equal(full) {
		t.Errorf("strip+prepend round-trip failed: got %v", child)
	}
}

func TestStripPrefixRejectsNonAncestor(t *testing.T) {
	a := MustNew("/a")
	b := MustNew("/b")
	if _, ok := a.StripPrefix(b); ok {
		t.Error("expected StripPrefix to fail for non-ancestor")
	}
}

func TestETagDeterministic(t *testing.T) {
	mtime := time.Unix(1700000000, 0)
	e1 := ETag(10, mtime)
	e2 := ETag(10, mtime)
	if e1 != e2 {
		t.Errorf("ETag is not deterministic: %s != %s", e1, e2)
	}
	if ETag(11, mtime) == e1 {
		t.Error("ETag should differ when size differs")
	}
}

func TestParseDepthDefaults(t *testing.T) {
	d, err := ParseDepth("", DepthInfinity)
	if err != nil || d != DepthInfinity {
		t.Errorf("expected default infinity, got %v, %v", d, err)
	}
	d, err = ParseDepth("1", Depth0)
	if err != nil || d != Depth1 {
		t.Errorf("expected depth 1, got %v, %v", d, err)
	}
	if _, err := ParseDepth("bogus", Depth0); err == nil {
		t.Error("expected error for bad depth header")
	}
}
