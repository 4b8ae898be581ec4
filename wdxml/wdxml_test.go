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

package wdxml

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParsePropfindEmptyBodyIsAllprop(t *testing.T) {
	sel, err := ParsePropfind(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if !sel.AllProp {
		t.Fatalf("expected AllProp, got %+v", sel)
	}
}

func TestParsePropfindPropNames(t *testing.T) {
	body := `<?xml version="1.0"?><propfind xmlns="DAV:" xmlns:ex="ex">` +
		`<prop><getetag/><ex:color/></prop></propfind>`
	sel, err := ParsePropfind(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Basic) != 1 || sel.Basic[0].Local != "getetag" {
		t.Fatalf("expected one basic prop getetag, got %+v", sel.Basic)
	}
	if len(sel.Extra) != 1 || sel.Extra[0].Local != "color" || sel.Extra[0].Space != "ex" {
		t.Fatalf("expected one extra prop ex:color, got %+v", sel.Extra)
	}
}

func TestParseProppatchPreservesOrder(t *testing.T) {
	body := `<?xml version="1.0"?><propertyupdate xmlns="DAV:" xmlns:ex="ex">` +
		`<set><prop><ex:color>red</ex:color></prop></set>` +
		`<remove><prop><ex:flavor/></prop></remove>` +
		`<set><prop><ex:size>large</ex:size></prop></set>` +
		`</propertyupdate>`
	entries, err := ParseProppatch(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Name.Local != "color" || entries[0].Remove || entries[0].Value != "red" {
		t.Errorf("entry 0 mismatch: %+v", entries[0])
	}
	if entries[1].Name.Local != "flavor" || !entries[1].Remove {
		t.Errorf("entry 1 mismatch: %+v", entries[1])
	}
	if entries[2].Name.Local != "size" || entries[2].Remove || entries[2].Value != "large" {
		t.Errorf("entry 2 mismatch: %+v", entries[2])
	}
}

func TestParseLockEmptyBodyIsRefresh(t *testing.T) {
	req, err := ParseLock(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if !req.Refresh {
		t.Fatalf("expected Refresh, got %+v", req)
	}
}

func TestParseLockRequiresWriteType(t *testing.T) {
	body := `<?xml version="1.0"?><lockinfo xmlns="DAV:"><lockscope><exclusive/></lockscope></lockinfo>`
	if _, err := ParseLock(strings.NewReader(body)); err == nil {
		t.Fatal("expected an error for a lockinfo body missing locktype write")
	}
}

func TestParseLockExclusiveOwner(t *testing.T) {
	body := `<?xml version="1.0"?><lockinfo xmlns="DAV:">` +
		`<lockscope><exclusive/></lockscope><locktype><write/></locktype>` +
		`<owner><href>me</href></owner></lockinfo>`
	req, err := ParseLock(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if req.Scope != ScopeExclusive {
		t.Errorf("expected ScopeExclusive, got %v", req.Scope)
	}
	if !strings.Contains(req.Owner, "me") {
		t.Errorf("expected owner to contain href text, got %q", req.Owner)
	}
}

// TestMultiStatusRoundTrip serializes a multistatus carrying getetag
// and parses a propfind selector naming getetag, checking that both
// sides use the same property identity. The serialized body itself is
// not parsed back.
func TestMultiStatusRoundTrip(t *testing.T) {
	ms := NewMultiStatus()
	ms.AddPropResponse("/a/b", []PropResult{
		{Name: PropName{Space: "DAV:", Local: "getetag"}, Value: NewAny(PropName{Space: "DAV:", Local: "getetag"}), Code: 200},
	})

	w := httptest.NewRecorder()
	if err := ms.Send(w); err != nil {
		t.Fatal(err)
	}
	if w.Code != StatusMulti {
		t.Fatalf("expected %d, got %d", StatusMulti, w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "D:multistatus") || !strings.Contains(body, "getetag") {
		t.Fatalf("unexpected body: %s", body)
	}

	reqBody := `<?xml version="1.0"?><propfind xmlns="DAV:"><prop><getetag/></prop></propfind>`
	sel, err := ParsePropfind(strings.NewReader(reqBody))
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Basic) != 1 || sel.Basic[0].Local != "getetag" {
		t.Fatalf("round-trip selector mismatch: %+v", sel.Basic)
	}
}

func TestBoundariesDepthResponseCount(t *testing.T) {
	ms := NewMultiStatus()
	for _, href := range []string{"/a", "/a/b", "/a/c"} {
		ms.AddPropResponse(href, []PropResult{
			{Name: PropName{Space: "DAV:", Local: "resourcetype"}, Value: NewAny(PropName{Space: "DAV:", Local: "resourcetype"}), Code: 200},
		})
	}
	if len(ms.Response) != 3 {
		t.Fatalf("expected 3 responses (1 + |children|), got %d", len(ms.Response))
	}
}
