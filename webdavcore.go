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

// Package webdavcore is an http.Handler implementing RFC 4918 WebDAV
// over a distributor of pluggable providers, with a process-wide lock
// manager and a structured XML serializer.
package webdavcore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nmvc/webdavcore/cond"
	"github.com/nmvc/webdavcore/distributor"
	"github.com/nmvc/webdavcore/dpath"
	"github.com/nmvc/webdavcore/internal/logctx"
	"github.com/nmvc/webdavcore/internal/pathlock"
	"github.com/nmvc/webdavcore/lockmgr"
	"github.com/nmvc/webdavcore/provider"
	"github.com/nmvc/webdavcore/wdxml"
)

// Handler is the WebDAV HTTP entry point: one distributor of mounted
// providers, one process-wide lock manager.
type Handler struct {
	Dist  *distributor.Distributor
	Locks *lockmgr.Manager

	props *pathlock.Table
}

// New creates a Handler. dist and locks must already be populated/
// started by the caller.
func New(dist *distributor.Distributor, locks *lockmgr.Manager) *Handler {
	return &Handler{Dist: dist, Locks: locks, props: pathlock.New()}
}

// requestCtx carries everything extracted from the HTTP request that
// every doXxx method needs.
type requestCtx struct {
	full      dpath.Path // full path, for Href rendering and If-header scoping
	prov      provider.Provider
	rel       dpath.Path // full path rewritten relative to the provider's mount
	depth     dpath.Depth
	timeout   time.Duration
	ifTag     *cond.IfTag
	overwrite bool
	now       time.Time
}

// davEnv implements cond.Env against the routed provider and lock
// manager, so the If-header's ETag/Locked predicates see the same
// state the rest of the dispatcher does.
type davEnv struct {
	h   *Handler
	now time.Time
}

func (e davEnv) ETag(r string) string {
	p, err := dpath.New(r)
	if err != nil {
		return ""
	}
	prov, rel, err := e.h.Dist.Route(p)
	if err != nil {
		return ""
	}
	res, err := prov.Stat(context.Background(), rel)
	if err != nil {
		return ""
	}
	return res.ETag()
}

func (e davEnv) Locked(r, token string) bool {
	p, err := dpath.New(r)
	if err != nil {
		return false
	}
	return e.h.Locks.HasToken(e.now, p, token)
}

func parseDepth(r *http.Request, def dpath.Depth) (dpath.Depth, error) {
	d, err := dpath.ParseDepth(r.Header.Get("Depth"), def)
	if err != nil {
		return 0, ErrorBadDepth.WithCause(err)
	}
	return d, nil
}

// parseTimeout parses the Timeout header and returns the first
// Second-<n> option it finds; Infinite and unparseable options are
// skipped, and 0 is returned when none parses. The lock manager
// clamps the result, so the header value is advisory.
func parseTimeout(r *http.Request) time.Duration {
	opts := strings.SplitN(r.Header.Get("Timeout"), ",", 3)
	for _, o := range opts {
		o = strings.TrimSpace(o)
		if o == "" || o == "Infinite" {
			continue
		}
		o = strings.TrimPrefix(o, "Second-")
		secs, err := strconv.Atoi(o)
		if err != nil {
			continue
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}

func parseIfHeader(r *http.Request) (*cond.IfTag, error) {
	ih := r.Header.Get("If")
	if ih == "" {
		return nil, nil
	}
	t, err := cond.ParseIfTag(ih)
	if err != nil {
		return nil, err
	}
	if err := t.RewriteHosts(r.Host); err != nil {
		return nil, err
	}
	return t, nil
}

// methodDefaultDepth picks the Depth default when a request omits the
// header: the
// Depth header default is method-dependent, following RFC 4918's
// per-method table rather than defaulting every method to infinity.
func methodDefaultDepth(method string) dpath.Depth {
	switch method {
	case "PROPFIND", "LOCK":
		return dpath.DepthInfinity
	default:
		return dpath.Depth0
	}
}

func (h *Handler) buildContext(r *http.Request) (requestCtx, error) {
	var rc requestCtx
	p, err := dpath.New(r.URL.Path)
	if err != nil {
		return rc, ErrorBadPath.WithCause(err)
	}
	rc.full = p

	prov, rel, err := h.Dist.Route(p)
	if err != nil {
		return rc, ErrorNotFound.WithCause(err)
	}
	rc.prov = prov
	rc.rel = rel

	rc.depth, err = parseDepth(r, methodDefaultDepth(r.Method))
	if err != nil {
		return rc, err
	}

	rc.ifTag, err = parseIfHeader(r)
	if err != nil {
		return rc, ErrorBadLock.WithCause(err)
	}

	rc.timeout = parseTimeout(r)
	rc.overwrite = r.Header.Get("Overwrite") == "T"
	rc.now = time.Now()
	return rc, nil
}

// checkCanWrite enforces the write precondition: the If-header must
// present the token of every live lock covering p.
func (h *Handler) checkCanWrite(rc requestCtx, p dpath.Path) error {
	var toks []string
	if rc.ifTag != nil {
		toks = rc.ifTag.GetAllTokens()
	}
	conds := make([]lockmgr.Condition, len(toks))
	for i, t := range toks {
		conds[i] = lockmgr.Condition{Token: t}
	}
	return h.Locks.Evaluate(rc.now, p, conds, nil)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	logger := logctx.Get(r.Context()).With().Str("request_id", reqID).Str("method", r.Method).Str("path", r.URL.Path).Logger()
	ctx := logctx.WithLogger(r.Context(), &logger)
	r = r.WithContext(ctx)
	w.Header().Set("X-Request-Id", reqID)

	rc, err := h.buildContext(r)
	if err != nil {
		h.writeError(w, r, rc, err)
		return
	}

	if rc.ifTag != nil {
		if !rc.ifTag.Eval(davEnv{h: h, now: rc.now}, rc.full.String()) {
			logger.Warn().Msg("precondition failed")
			h.writeError(w, r, rc, ErrorPreconditionFailed)
			return
		}
	}

	switch r.Method {
	case "OPTIONS":
		h.doOptions(w, r, rc)
	case "GET":
		h.doGet(w, r, rc, true)
	case "HEAD":
		h.doGet(w, r, rc, false)
	case "POST":
		h.doGet(w, r, rc, true)
	case "DELETE":
		h.doDelete(w, r, rc)
	case "PUT":
		h.doPut(w, r, rc)
	case "MKCOL":
		h.doMkcol(w, r, rc)
	case "COPY":
		h.doCopyOrMove(w, r, rc, false)
	case "MOVE":
		h.doCopyOrMove(w, r, rc, true)
	case "PROPFIND":
		h.doPropfind(w, r, rc)
	case "PROPPATCH":
		h.doProppatch(w, r, rc)
	case "LOCK":
		h.doLock(w, r, rc)
	case "UNLOCK":
		h.doUnlock(w, r, rc)
	default:
		h.writeError(w, r, rc, ErrorNotAllowed)
	}
}

func (h *Handler) allowedHeader(w http.ResponseWriter, r *http.Request, rc requestCtx) {
	allowed := "OPTIONS, MKCOL, PUT, LOCK"
	if rc.prov != nil {
		if res, err := rc.prov.Stat(r.Context(), rc.rel); err == nil {
			allowed = "OPTIONS, GET, HEAD, POST, DELETE, PROPPATCH, COPY, MOVE, LOCK, UNLOCK"
			if res.IsCollection {
				allowed += ", PUT, PROPFIND"
			}
		}
	}
	w.Header().Set("Allow", allowed)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, rc requestCtx, err error) {
	logctx.Get(r.Context()).Warn().Err(err).Msg("request failed")
	if we, ok := err.(Error); ok {
		w.WriteHeader(we.HTTPCode())
		if we.HTTPCode() == http.StatusMethodNotAllowed {
			h.allowedHeader(w, r, rc)
		}
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
}

func (h *Handler) doOptions(w http.ResponseWriter, r *http.Request, rc requestCtx) {
	w.Header().Set("DAV", "1, 2")
	h.allowedHeader(w, r, rc)
	w.Header().Set("MS-Author-Via", "DAV")
}

func (h *Handler) doGet(w http.ResponseWriter, r *http.Request, rc requestCtx, withBody bool) {
	res, err := rc.prov.Stat(r.Context(), rc.rel)
	if err != nil {
		h.writeError(w, r, rc, mapProviderErr(err))
		return
	}
	if res.IsCollection {
		h.writeError(w, r, rc, ErrorIsDir)
		return
	}
	w.Header().Set("ETag", res.ETag())
	w.Header().Set("Last-Modified", dpath.HTTPDate(res.LastModified))
	if !withBody {
		w.WriteHeader(http.StatusOK)
		return
	}
	rdr, err := rc.prov.Read(r.Context(), rc.rel)
	if err != nil {
		h.writeError(w, r, rc, mapProviderErr(err))
		return
	}
	defer rdr.Close()
	http.ServeContent(w, r, rc.full.String(), res.LastModified, asReadSeeker(rdr))
}

// asReadSeeker adapts a provider.ReadCloser for http.ServeContent,
// which needs Seek for Range support. Providers whose concrete reader
// is already seekable (file handles, byte buffers) pass straight
// through; anything else is buffered into memory once.
func asReadSeeker(rc provider.ReadCloser) io.ReadSeeker {
	if rs, ok := rc.(io.ReadSeeker); ok {
		return rs
	}
	data, _ := io.ReadAll(rc)
	return bytes.NewReader(data)
}

func (h *Handler) doDelete(w http.ResponseWriter, r *http.Request, rc requestCtx) {
	if err := h.checkCanWrite(rc, rc.full); err != nil {
		h.writeError(w, r, rc, ErrorLocked.WithCause(err))
		return
	}
	errs, err := rc.prov.Delete(r.Context(), rc.rel)
	if err != nil {
		h.writeError(w, r, rc, mapProviderErr(err))
		return
	}
	if len(errs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ms := wdxml.NewMultiStatus()
	for p, e := range errs {
		ms.AddStatus(rc.full.String()+"/"+p, mapProviderErr(e).(Error).HTTPCode())
	}
	ms.Send(w)
}

func (h *Handler) doPut(w http.ResponseWriter, r *http.Request, rc requestCtx) {
	if err := h.checkCanWrite(rc, rc.full); err != nil {
		h.writeError(w, r, rc, ErrorLocked.WithCause(err))
		return
	}
	result, err := rc.prov.Write(r.Context(), rc.rel, r.Body, rc.overwrite)
	if err != nil {
		h.writeError(w, r, rc, mapProviderErr(err))
		return
	}
	if result == provider.Created {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) doMkcol(w http.ResponseWriter, r *http.Request, rc requestCtx) {
	if err := h.checkCanWrite(rc, rc.full); err != nil {
		h.writeError(w, r, rc, ErrorLocked.WithCause(err))
		return
	}
	if r.ContentLength > 0 {
		h.writeError(w, r, rc, ErrorUnsupportedType)
		return
	}
	if err := rc.prov.Mkcol(r.Context(), rc.rel); err != nil {
		h.writeError(w, r, rc, mapProviderErr(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) doCopyOrMove(w http.ResponseWriter, r *http.Request, rc requestCtx, move bool) {
	if move {
		if err := h.checkCanWrite(rc, rc.full); err != nil {
			h.writeError(w, r, rc, ErrorLocked.WithCause(err))
			return
		}
	}

	dhdr := r.Header.Get("Destination")
	if dhdr == "" {
		h.writeError(w, r, rc, ErrorBadDest)
		return
	}
	durl, err := url.Parse(dhdr)
	if err != nil {
		h.writeError(w, r, rc, ErrorBadDest.WithCause(err))
		return
	}
	if durl.Host != "" && durl.Host != r.Host {
		h.writeError(w, r, rc, ErrorBadHost)
		return
	}
	dst, err := dpath.New(durl.Path)
	if err != nil {
		h.writeError(w, r, rc, ErrorBadDest.WithCause(err))
		return
	}

	if err := h.checkCanWrite(rc, dst); err != nil {
		h.writeError(w, r, rc, ErrorLocked.WithCause(err))
		return
	}

	prov, relSrc, relDst, err := h.Dist.RouteCopyMove(rc.full, dst)
	if err != nil {
		if err == distributor.ErrCrossProvider {
			h.writeError(w, r, rc, ErrorBadGateway.WithCause(err))
		} else {
			h.writeError(w, r, rc, ErrorBadDest.WithCause(err))
		}
		return
	}

	opts := provider.CopyMoveOptions{Overwrite: rc.overwrite, Depth: rc.depth}
	var result provider.WriteResult
	if move {
		result, err = prov.Move(r.Context(), relSrc, relDst, opts)
	} else {
		result, err = prov.Copy(r.Context(), relSrc, relDst, opts)
	}
	if err != nil {
		h.writeError(w, r, rc, mapProviderErr(err))
		return
	}
	if result == provider.Created {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) doPropfind(w http.ResponseWriter, r *http.Request, rc requestCtx) {
	sel, err := wdxml.ParsePropfind(r.Body)
	if err != nil {
		h.writeError(w, r, rc, ErrorBadPropfind.WithCause(err))
		return
	}

	resources, err := provider.Subtree(r.Context(), rc.prov, rc.rel, rc.depth)
	if err != nil {
		h.writeError(w, r, rc, mapProviderErr(err))
		return
	}

	ms := wdxml.NewMultiStatus()
	for _, res := range resources {
		href := rc.full.String()
		if !res.Path.Equal(rc.rel) {
			if stripped, ok := res.Path.StripPrefix(rc.rel); ok {
				href = joinHref(rc.full, stripped)
			}
		}

		deadProps, _ := rc.prov.ListDeadProps(r.Context(), res.Path)
		locks := h.Locks.ActiveLocksFor(rc.now, joinPath(rc.full, res.Path, rc.rel))

		names := selectorNames(sel, deadProps)
		var results []wdxml.PropResult
		for _, n := range names {
			a, code := h.getPropValue(n, res, deadProps, locks, sel.PropName)
			results = append(results, wdxml.PropResult{Name: n, Value: a, Code: code})
		}
		ms.AddPropResponse(href, results)
	}
	ms.Send(w)
}

func selectorNames(sel wdxml.PropfindSelector, deadProps map[provider.PropName]string) []wdxml.PropName {
	if sel.PropName || sel.AllProp {
		var out []wdxml.PropName
		for local := range wdxml.BasicPropNames {
			out = append(out, wdxml.PropName{Space: "DAV:", Local: local})
		}
		for n := range deadProps {
			out = append(out, wdxml.PropName{Space: n.Space, Local: n.Local})
		}
		return out
	}
	var out []wdxml.PropName
	for _, n := range sel.Basic {
		out = append(out, n)
	}
	for _, n := range sel.Extra {
		out = append(out, n)
	}
	return out
}

func (h *Handler) getPropValue(n wdxml.PropName, res provider.Resource, deadProps map[provider.PropName]string, locks []*lockmgr.Lock, namesOnly bool) (wdxml.Any, int) {
	a := wdxml.NewAny(n)
	if n.Space == "DAV:" || n.Space == "" {
		switch n.Local {
		case "resourcetype":
			if res.IsCollection {
				a.Inner = `<collection xmlns="DAV:"/>`
			}
			return a, http.StatusOK
		case "supportedlock":
			a.Inner = `<lockentry xmlns="DAV:"><lockscope><exclusive/></lockscope><locktype><write/></locktype></lockentry>` +
				`<lockentry xmlns="DAV:"><lockscope><shared/></lockscope><locktype><write/></locktype></lockentry>`
			return a, http.StatusOK
		case "lockdiscovery":
			a.Inner = renderLockDiscovery(locks)
			return a, http.StatusOK
		case "displayname":
			if namesOnly {
				return a, http.StatusOK
			}
			a.Value = res.DisplayName
			return a, http.StatusOK
		case "getcontentlength":
			if namesOnly {
				return a, http.StatusOK
			}
			a.Value = strconv.FormatInt(res.Size, 10)
			return a, http.StatusOK
		case "getcontenttype":
			if namesOnly {
				return a, http.StatusOK
			}
			if res.ContentType != "" {
				a.Value = res.ContentType
			} else if res.IsCollection {
				a.Value = "httpd/unix-directory"
			} else {
				a.Value = "application/octet-stream"
			}
			return a, http.StatusOK
		case "getetag":
			if namesOnly {
				return a, http.StatusOK
			}
			a.Value = res.ETag()
			return a, http.StatusOK
		case "getlastmodified":
			if namesOnly {
				return a, http.StatusOK
			}
			a.Value = dpath.HTTPDate(res.LastModified)
			return a, http.StatusOK
		case "creationdate":
			if namesOnly {
				return a, http.StatusOK
			}
			a.Value = dpath.ISO8601(res.Created)
			return a, http.StatusOK
		}
	}
	if v, ok := deadProps[provider.PropName{Space: n.Space, Local: n.Local}]; ok {
		if !namesOnly {
			a.Value = v
		}
		return a, http.StatusOK
	}
	return a, http.StatusNotFound
}

func renderLockDiscovery(locks []*lockmgr.Lock) string {
	var b strings.Builder
	for _, l := range locks {
		b.WriteString(`<activelock xmlns="DAV:"><locktype><write/></locktype><lockscope>`)
		if l.Scope == lockmgr.Shared {
			b.WriteString(`<shared/>`)
		} else {
			b.WriteString(`<exclusive/>`)
		}
		b.WriteString(`</lockscope><depth>`)
		b.WriteString(l.Depth.String())
		b.WriteString(`</depth><owner>`)
		b.WriteString(l.Owner)
		b.WriteString(`</owner><locktoken><href>`)
		b.WriteString(l.Token)
		b.WriteString(`</href></locktoken></activelock>`)
	}
	return b.String()
}

func (h *Handler) doProppatch(w http.ResponseWriter, r *http.Request, rc requestCtx) {
	if err := h.checkCanWrite(rc, rc.full); err != nil {
		h.writeError(w, r, rc, ErrorLocked.WithCause(err))
		return
	}

	entries, err := wdxml.ParseProppatch(r.Body)
	if err != nil {
		h.writeError(w, r, rc, ErrorBadProppatch.WithCause(err))
		return
	}

	type staged struct {
		name      provider.PropName
		value     string
		remove    bool
		hadPrev   bool
		prevValue string
	}

	var results []wdxml.PropResult
	h.props.With(rc.full.String(), func() {
		// Record every entry's prior value, then apply the entries in
		// order. Entries that already applied before a later failure
		// are rolled back to their prior value, so either every entry
		// persists or none does.
		plan := make([]staged, len(entries))
		for i, e := range entries {
			name := provider.PropName{Space: e.Name.Space, Local: e.Name.Local}
			prev, hadPrev := rc.prov.GetDeadProp(r.Context(), rc.rel, name)
			plan[i] = staged{name: name, value: e.Value, remove: e.Remove, hadPrev: hadPrev, prevValue: prev}
		}

		failedAt := -1
		for i, s := range plan {
			var err error
			switch {
			case s.remove && !s.hadPrev:
				// The provider's RemoveDeadProp contract allows a no-op
				// remove of an absent property to succeed, but an
				// explicit removal of a property the resource never had
				// is treated as a failed entry here so it rolls back the
				// rest of the request along with it.
				err = provider.ErrNotFound
			case s.remove:
				err = rc.prov.RemoveDeadProp(r.Context(), rc.rel, s.name)
			default:
				err = rc.prov.SetDeadProp(r.Context(), rc.rel, s.name, s.value)
			}
			if err != nil {
				failedAt = i
				break
			}
		}

		if failedAt == -1 {
			for _, s := range plan {
				results = append(results, wdxml.PropResult{
					Name:  wdxml.PropName{Space: s.name.Space, Local: s.name.Local},
					Value: wdxml.NewAny(wdxml.PropName{Space: s.name.Space, Local: s.name.Local}),
					Code:  http.StatusOK,
				})
			}
			return
		}

		for i := 0; i < failedAt; i++ {
			s := plan[i]
			if s.hadPrev {
				_ = rc.prov.SetDeadProp(r.Context(), rc.rel, s.name, s.prevValue)
			} else {
				_ = rc.prov.RemoveDeadProp(r.Context(), rc.rel, s.name)
			}
		}

		for i, s := range plan {
			code := http.StatusFailedDependency
			if i == failedAt {
				code = http.StatusConflict
			}
			results = append(results, wdxml.PropResult{
				Name:  wdxml.PropName{Space: s.name.Space, Local: s.name.Local},
				Value: wdxml.NewAny(wdxml.PropName{Space: s.name.Space, Local: s.name.Local}),
				Code:  code,
			})
		}
	})

	ms := wdxml.NewMultiStatus()
	ms.AddPropResponse(rc.full.String(), results)
	ms.Send(w)
}

func (h *Handler) doLock(w http.ResponseWriter, r *http.Request, rc requestCtx) {
	req, err := wdxml.ParseLock(r.Body)
	if err != nil {
		h.writeError(w, r, rc, ErrorBadLock.WithCause(err))
		return
	}

	if !rc.full.IsRoot() {
		if _, err := rc.prov.Stat(r.Context(), rc.rel.Parent()); err != nil {
			h.writeError(w, r, rc, ErrorMissingParent)
			return
		}
	}

	var l *lockmgr.Lock
	if req.Refresh {
		if rc.ifTag == nil {
			h.writeError(w, r, rc, ErrorBadLock)
			return
		}
		tok, ok := rc.ifTag.GetSingleState()
		if !ok {
			h.writeError(w, r, rc, ErrorBadLock)
			return
		}
		l, err = h.Locks.Refresh(rc.now, tok, rc.full, rc.timeout)
	} else {
		scope := lockmgr.Exclusive
		if req.Scope == wdxml.ScopeShared {
			scope = lockmgr.Shared
		}
		l, err = h.Locks.Create(rc.now, rc.full, scope, rc.depth, req.Owner, rc.timeout)
	}
	if err != nil {
		h.writeError(w, r, rc, mapLockErr(err))
		return
	}

	if !req.Refresh {
		w.Header().Set("Lock-Token", "<"+l.Token+">")
	}

	created := false
	if !req.Refresh {
		if _, err := rc.prov.Stat(r.Context(), rc.rel); err != nil {
			if _, werr := rc.prov.Write(r.Context(), rc.rel, strings.NewReader(""), false); werr != nil {
				h.Locks.Unlock(rc.now, l.Token)
				h.writeError(w, r, rc, mapProviderErr(werr))
				return
			}
			created = true
		}
	}

	if created {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	a := wdxml.NewAny(wdxml.PropName{Space: "DAV:", Local: "lockdiscovery"})
	a.Inner = renderLockDiscovery([]*lockmgr.Lock{l})
	wdxml.SendProp(a, w)
}

func (h *Handler) doUnlock(w http.ResponseWriter, r *http.Request, rc requestCtx) {
	lt := r.Header.Get("Lock-Token")
	lt = strings.TrimPrefix(lt, "<")
	lt = strings.TrimSuffix(lt, ">")

	if !h.Locks.HasToken(rc.now, rc.full, lt) {
		h.writeError(w, r, rc, ErrorBadLock)
		return
	}
	h.Locks.Unlock(rc.now, lt)
	w.WriteHeader(http.StatusNoContent)
}

func mapProviderErr(err error) error {
	switch err {
	case provider.ErrNotFound:
		return ErrorNotFound.WithCause(err)
	case provider.ErrExists:
		return ErrorDestExists.WithCause(err)
	case provider.ErrNotCollection:
		return ErrorIsNotDir.WithCause(err)
	case provider.ErrIsCollection:
		return ErrorIsDir.WithCause(err)
	case provider.ErrNoParent:
		return ErrorMissingParent.WithCause(err)
	case provider.ErrForbidden:
		return ErrorSameFile.WithCause(err)
	case provider.ErrNoSpace:
		return ErrorInsufficientStorage.WithCause(err)
	default:
		return ErrorConflict.WithCause(err)
	}
}

func mapLockErr(err error) error {
	switch err.(type) {
	case *lockmgr.ErrConflict:
		return ErrorLocked.WithCause(err)
	case *lockmgr.ErrNoSuchLock:
		return ErrorBadLock.WithCause(err)
	default:
		return ErrorConflict.WithCause(err)
	}
}

// joinHref renders the full external href for a descendant resource
// found under a PROPFIND root.
func joinHref(full dpath.Path, stripped dpath.Path) string {
	p := full
	for _, seg := range stripped.Segments() {
		p = p.Join(seg)
	}
	return p.String()
}

// joinPath is joinHref's dpath.Path-returning counterpart, used when
// looking up locks by their externally-visible path.
func joinPath(full, resPath, relRoot dpath.Path) dpath.Path {
	if stripped, ok := resPath.StripPrefix(relRoot); ok {
		p := full
		for _, seg := range stripped.Segments() {
			p = p.Join(seg)
		}
		return p
	}
	return full
}
