package sheets

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"roomshare/internal/adapters/observability"
	"roomshare/internal/domain"
)

// Client talks to the Sheets v4 REST API for a single spreadsheet document.
// Values are read unformatted (numbers arrive as float64) and written RAW.
type Client struct {
	base string
	doc  string
	hc   *http.Client
	rl   *rate.Limiter

	mu       sync.Mutex
	sheetIDs map[string]int64
}

func New(base, doc string, hc *http.Client, rps int) (*Client, error) {
	if doc == "" {
		return nil, &domain.ConfigError{Field: "SPREADSHEET_DB_ID"}
	}
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		base:     strings.TrimRight(base, "/"),
		doc:      doc,
		hc:       hc,
		rl:       rate.NewLimiter(rate.Limit(rps), rps),
		sheetIDs: map[string]int64{},
	}, nil
}

type valueRange struct {
	Range  string  `json:"range,omitempty"`
	Values [][]any `json:"values"`
}

type spreadsheetMeta struct {
	Sheets []struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

// ---- domain.TableStore ----

func (c *Client) Tabs(ctx context.Context) ([]string, error) {
	var meta spreadsheetMeta
	q := url.Values{"fields": {"sheets.properties(sheetId,title)"}}
	err := c.do(ctx, call{
		op: "spreadsheets.get", method: http.MethodGet, idempotent: true,
		url: fmt.Sprintf("%s/spreadsheets/%s?%s", c.base, url.PathEscape(c.doc), q.Encode()),
	}, &meta)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(meta.Sheets))
	c.mu.Lock()
	for _, s := range meta.Sheets {
		c.sheetIDs[s.Properties.Title] = s.Properties.SheetID
		names = append(names, s.Properties.Title)
	}
	c.mu.Unlock()
	return names, nil
}

func (c *Client) Header(ctx context.Context, tab string) ([]any, error) {
	var vr valueRange
	if err := c.do(ctx, c.valuesGet(tab, quoteTab(tab)+"!1:1"), &vr); err != nil {
		return nil, err
	}
	if len(vr.Values) == 0 {
		return nil, nil
	}
	return vr.Values[0], nil
}

func (c *Client) Rows(ctx context.Context, tab string) ([][]any, error) {
	var vr valueRange
	if err := c.do(ctx, c.valuesGet(tab, quoteTab(tab)), &vr); err != nil {
		return nil, err
	}
	return vr.Values, nil
}

func (c *Client) Append(ctx context.Context, tab string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	q := url.Values{"valueInputOption": {"RAW"}, "insertDataOption": {"INSERT_ROWS"}}
	return c.do(ctx, call{
		op: "values.append", tab: tab, method: http.MethodPost,
		url:  c.valuesURL(quoteTab(tab)+"!A1", ":append", q),
		body: valueRange{Values: rows},
	}, nil)
}

func (c *Client) InsertHeader(ctx context.Context, tab string, header []any) error {
	id, err := c.sheetID(ctx, tab)
	if err != nil {
		return err
	}
	req := map[string]any{
		"requests": []any{map[string]any{
			"insertDimension": map[string]any{
				"range": map[string]any{
					"sheetId": id, "dimension": "ROWS", "startIndex": 0, "endIndex": 1,
				},
				"inheritFromBefore": false,
			},
		}},
	}
	if err := c.do(ctx, call{
		op: "spreadsheets.batchUpdate", tab: tab, method: http.MethodPost,
		url:  fmt.Sprintf("%s/spreadsheets/%s:batchUpdate", c.base, url.PathEscape(c.doc)),
		body: req,
	}, nil); err != nil {
		return err
	}
	q := url.Values{"valueInputOption": {"RAW"}}
	return c.do(ctx, call{
		op: "values.update", tab: tab, method: http.MethodPut, idempotent: true,
		url:  c.valuesURL(quoteTab(tab)+"!A1", "", q),
		body: valueRange{Values: [][]any{header}},
	}, nil)
}

func (c *Client) Clear(ctx context.Context, tab string) error {
	return c.do(ctx, call{
		op: "values.clear", tab: tab, method: http.MethodPost, idempotent: true,
		url:  c.valuesURL(quoteTab(tab), ":clear", nil),
		body: struct{}{},
	}, nil)
}

// ---- Internals ----

type call struct {
	op     string // metrics endpoint label
	tab    string
	method string
	url    string
	body   any
	// idempotent calls are retried on network errors and 5xx; the rest only
	// on 429, where the request was rejected before being applied.
	idempotent bool
}

func (c *Client) valuesGet(tab, rng string) call {
	q := url.Values{"valueRenderOption": {"UNFORMATTED_VALUE"}, "majorDimension": {"ROWS"}}
	return call{op: "values.get", tab: tab, method: http.MethodGet, idempotent: true, url: c.valuesURL(rng, "", q)}
}

func (c *Client) valuesURL(rng, verb string, q url.Values) string {
	u := fmt.Sprintf("%s/spreadsheets/%s/values/%s%s", c.base, url.PathEscape(c.doc), url.PathEscape(rng), verb)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) sheetID(ctx context.Context, tab string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[tab]
	c.mu.Unlock()
	if ok {
		return id, nil
	}
	if _, err := c.Tabs(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.sheetIDs[tab]; ok {
		return id, nil
	}
	return 0, &domain.TableNotFoundError{Tab: tab}
}

// quoteTab wraps a tab name for A1 notation.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// do performs one API call with client-side rate limiting and retries,
// decoding a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return &domain.RemoteStoreError{Op: cl.op, Tab: cl.tab, Err: err}
	}

	var payload []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("sheets: encode %s: %w", cl.op, err)
		}
		payload = b
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "roomshare/1.0")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("sheets", cl.op, 0, time.Since(start))
			lastErr = &domain.RemoteStoreError{Op: cl.op, Tab: cl.tab, Err: err}
			if ctx.Err() != nil || !cl.idempotent {
				return lastErr
			}
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return lastErr
		}
		observability.ObserveExternal("sheets", cl.op, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			defer resp.Body.Close()
			if out == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return &domain.RemoteStoreError{Op: cl.op, Tab: cl.tab, Status: resp.StatusCode, Err: err}
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests ||
			(cl.idempotent && resp.StatusCode >= 500):
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			msg := readSnippet(resp)
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = &domain.RemoteStoreError{Op: cl.op, Tab: cl.tab, Status: resp.StatusCode, Err: errors.New(msg)}
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			return lastErr

		case resp.StatusCode == http.StatusBadRequest:
			msg := readSnippet(resp)
			if cl.tab != "" && strings.Contains(msg, "Unable to parse range") {
				return &domain.TableNotFoundError{Tab: cl.tab}
			}
			return &domain.RemoteStoreError{Op: cl.op, Tab: cl.tab, Status: resp.StatusCode, Err: errors.New(msg)}

		default:
			msg := readSnippet(resp)
			return &domain.RemoteStoreError{Op: cl.op, Tab: cl.tab, Status: resp.StatusCode, Err: errors.New(msg)}
		}
	}
	return lastErr
}

// readSnippet drains and closes the body, keeping a short prefix for errors.
func readSnippet(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return strings.TrimSpace(string(b))
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
