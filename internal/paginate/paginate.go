// Package paginate turns a single adapter call plus a per-style
// "extract next position" strategy into a lazy multi-page iterator.
//
// DESIGN: The engine is protocol-agnostic. Three built-in styles:
//
//   - offset: next position = position + page size
//   - cursor: next position = gjson lookup into the response (meta
//     first, then data), empty cursor terminates
//   - header: next position = parsed from a response header (RFC 5988
//     Link rel="next", or a literal token header), absence terminates
//
// Each Next performs exactly one adapter request, never prefetches, and
// never retries: a failed fetch propagates and the caller may resume
// from Position(). The engine provides no upper bound of its own: a
// source that never signals completion iterates forever, and that is
// the caller's contract to watch, not a defect the engine hides.
package paginate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/protogate/protogate/internal/core"
)

// Style selects the position-advance strategy.
type Style string

const (
	StyleOffset Style = "offset"
	StyleCursor Style = "cursor"
	StyleHeader Style = "header"
)

// Meta keys the engine writes into each outgoing request so adapters
// can map the position onto their wire format.
const (
	MetaPosition = "page_position"
	MetaPageSize = "page_size"
)

// Config describes one paginated fetch.
type Config struct {
	// Style selects the advance strategy.
	Style Style

	// PageSize is required for the offset style and advisory otherwise.
	PageSize int

	// CursorField is the gjson path of the next-page token in the
	// response (cursor style). Checked against Response.Meta first,
	// then against Response.Data.
	CursorField string

	// LinkHeader is the response header carrying the next position
	// (header style). Defaults to "Link"; a non-Link header is treated
	// as a literal token.
	LinkHeader string

	// Start is the initial position: "0" offset, an opaque cursor, or
	// "" to let the first fetch run position-less.
	Start string

	// Done, when non-nil, overrides the style's default termination
	// check. It sees the page that was just fetched and the extracted
	// next position.
	Done func(resp *core.Response, next string) bool
}

// Fetch performs one page request at the given position. The façade
// binds this to its adapter; tests bind fakes.
type Fetch func(ctx context.Context, req *core.Request) (*core.Response, error)

// Pager is a forward-only lazy page iterator. Not safe for concurrent
// use; start a fresh Pager per iteration.
type Pager struct {
	cfg       Config
	fetch     Fetch
	req       *core.Request
	position  string
	exhausted bool
}

// New creates a Pager over the given request template. The template's
// Meta is copied per page with the current position injected.
func New(cfg Config, req *core.Request, fetch Fetch) (*Pager, error) {
	switch cfg.Style {
	case StyleOffset:
		if cfg.PageSize <= 0 {
			return nil, fmt.Errorf("paginate: offset style requires a positive page size")
		}
		if cfg.Start == "" {
			cfg.Start = "0"
		}
	case StyleCursor:
		if cfg.CursorField == "" {
			return nil, fmt.Errorf("paginate: cursor style requires a cursor field")
		}
	case StyleHeader:
		if cfg.LinkHeader == "" {
			cfg.LinkHeader = "Link"
		}
	default:
		return nil, fmt.Errorf("paginate: unknown style %q", cfg.Style)
	}
	return &Pager{cfg: cfg, fetch: fetch, req: req, position: cfg.Start}, nil
}

// Next fetches the next page. It returns (nil, nil) once the sequence
// is exhausted. A fetch error leaves the position unchanged so the
// caller can decide whether to resume.
func (p *Pager) Next(ctx context.Context) (*core.Response, error) {
	if p.exhausted {
		return nil, nil
	}

	req := p.req.Clone()
	if req.Meta == nil {
		req.Meta = make(map[string]string)
	}
	if p.position != "" {
		req.Meta[MetaPosition] = p.position
	}
	if p.cfg.PageSize > 0 {
		req.Meta[MetaPageSize] = strconv.Itoa(p.cfg.PageSize)
	}

	resp, err := p.fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	// Under the default offset termination an empty page only proves the
	// source is drained; it is not itself a page of results.
	if p.cfg.Style == StyleOffset && p.cfg.Done == nil && pageLen(resp) == 0 {
		p.exhausted = true
		return nil, nil
	}

	next := p.advance(resp)
	if p.done(resp, next) {
		p.exhausted = true
	} else {
		p.position = next
	}
	return resp, nil
}

// Position returns the last known position, for caller-driven resume
// after a failed fetch.
func (p *Pager) Position() string { return p.position }

// Exhausted reports whether the sequence has terminated.
func (p *Pager) Exhausted() bool { return p.exhausted }

// advance extracts the next position from the fetched page.
func (p *Pager) advance(resp *core.Response) string {
	switch p.cfg.Style {
	case StyleOffset:
		offset, _ := strconv.Atoi(p.position)
		return strconv.Itoa(offset + p.cfg.PageSize)
	case StyleCursor:
		if resp.Meta != nil {
			if cursor, ok := resp.Meta[p.cfg.CursorField]; ok {
				return cursor
			}
		}
		return gjson.GetBytes(resp.Data, p.cfg.CursorField).String()
	case StyleHeader:
		value := resp.Header(p.cfg.LinkHeader)
		if p.cfg.LinkHeader == "Link" {
			return nextLink(value)
		}
		return value
	}
	return ""
}

// done applies the style's default termination check unless the config
// overrides it.
func (p *Pager) done(resp *core.Response, next string) bool {
	if p.cfg.Done != nil {
		return p.cfg.Done(resp, next)
	}
	switch p.cfg.Style {
	case StyleOffset:
		// An empty or short page means the source is drained.
		return pageLen(resp) < p.cfg.PageSize
	case StyleCursor, StyleHeader:
		return next == ""
	}
	return true
}

// pageLen counts items on an offset-style page: a JSON array (or an
// "items" array) in Data, falling back to treating any non-empty body
// as a full page.
func pageLen(resp *core.Response) int {
	if len(resp.Data) == 0 {
		return 0
	}
	parsed := gjson.ParseBytes(resp.Data)
	if parsed.IsArray() {
		return len(parsed.Array())
	}
	if items := parsed.Get("items"); items.IsArray() {
		return len(items.Array())
	}
	return 1
}

var linkNextRE = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)

// nextLink pulls the rel="next" target out of an RFC 5988 Link header.
func nextLink(header string) string {
	if header == "" {
		return ""
	}
	if m := linkNextRE.FindStringSubmatch(header); m != nil {
		return m[1]
	}
	return ""
}
