package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client performs CRUD against the hosted row-store's REST interface
// (PostgREST conventions: equality filters, order, limit/offset as query
// parameters, JSON bodies, representation returned on writes).
//
// Rules:
// - This is the only package allowed to talk to the row-store.
// - No retries; a failed write is reported to the caller as-is.
// - Rows are never cached beyond the lifetime of a single request.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

const requestTimeout = 30 * time.Second

// ErrNotFound indicates a filter matched no rows where one was expected.
var ErrNotFound = errors.New("store: not found")

// UpstreamError is a non-success response from the row-store.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("store: %s: row-store returned %d: %s", e.Op, e.StatusCode, e.Body)
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

// Query narrows a table operation. Only equality and inequality filters
// are supported; that is all this service needs.
type Query struct {
	filters [][3]string // column, op, value
	orderBy string
	desc    bool
	limit   int
	offset  int
}

func Where(column, value string) Query {
	return Query{}.AndEq(column, value)
}

func (q Query) AndEq(column, value string) Query {
	q.filters = append(q.filters, [3]string{column, "eq", value})
	return q
}

func (q Query) AndNeq(column, value string) Query {
	q.filters = append(q.filters, [3]string{column, "neq", value})
	return q
}

func (q Query) OrderBy(column string, desc bool) Query {
	q.orderBy = column
	q.desc = desc
	return q
}

func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

func (q Query) Offset(n int) Query {
	q.offset = n
	return q
}

func (q Query) encode() string {
	v := url.Values{}
	for _, f := range q.filters {
		v.Set(f[0], f[1]+"."+f[2])
	}
	if q.orderBy != "" {
		dir := "asc"
		if q.desc {
			dir = "desc"
		}
		v.Set("order", q.orderBy+"."+dir)
	}
	if q.limit > 0 {
		v.Set("limit", strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		v.Set("offset", strconv.Itoa(q.offset))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Insert writes one row and decodes the stored representation into out
// (a pointer to the row type). out may be nil.
func (c *Client) Insert(ctx context.Context, table string, row, out any) error {
	rows, err := c.roundTrip(ctx, http.MethodPost, table, Query{}, row)
	if err != nil {
		return err
	}
	return firstRow(rows, out, false)
}

// Select reads rows matching q into out (a pointer to a slice).
func (c *Client) Select(ctx context.Context, table string, q Query, out any) error {
	rows, err := c.roundTrip(ctx, http.MethodGet, table, q, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(rows, out)
}

// SelectOne reads the single row matching q into out; ErrNotFound when the
// filter matches nothing.
func (c *Client) SelectOne(ctx context.Context, table string, q Query, out any) error {
	rows, err := c.roundTrip(ctx, http.MethodGet, table, q.Limit(1), nil)
	if err != nil {
		return err
	}
	return firstRow(rows, out, true)
}

// Update patches rows matching q with the given column/value fields and
// decodes the first updated row into out. ErrNotFound when nothing matched
// and out is non-nil.
func (c *Client) Update(ctx context.Context, table string, q Query, fields map[string]any, out any) error {
	rows, err := c.roundTrip(ctx, http.MethodPatch, table, q, fields)
	if err != nil {
		return err
	}
	if out == nil {
		// Caller does not care whether anything matched (bulk patches).
		return nil
	}
	return firstRow(rows, out, true)
}

// Delete removes rows matching q and reports how many were removed.
func (c *Client) Delete(ctx context.Context, table string, q Query) (int, error) {
	rows, err := c.roundTrip(ctx, http.MethodDelete, table, q, nil)
	if err != nil {
		return 0, err
	}
	var deleted []json.RawMessage
	if err := json.Unmarshal(rows, &deleted); err != nil {
		return 0, fmt.Errorf("store: decode delete response: %w", err)
	}
	return len(deleted), nil
}

func (c *Client) roundTrip(ctx context.Context, method, table string, q Query, body any) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("store: encode body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	u := c.baseURL + "/rest/v1/" + table + q.encode()
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("store: build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		// Writes return the affected rows so callers see store-assigned
		// ids and timestamps without a second read.
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store: %s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Op: method + " " + table, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if len(raw) == 0 {
		raw = []byte("[]")
	}
	return raw, nil
}

// firstRow decodes the first element of a JSON array into out.
// emptyIsNotFound controls whether an empty array is ErrNotFound (reads,
// updates) or an upstream protocol surprise (inserts).
func firstRow(rows json.RawMessage, out any, emptyIsNotFound bool) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(rows, &arr); err != nil {
		return fmt.Errorf("store: decode rows: %w", err)
	}
	if len(arr) == 0 {
		if emptyIsNotFound {
			return ErrNotFound
		}
		return &UpstreamError{Op: "insert", StatusCode: http.StatusOK, Body: "row-store returned no representation"}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(arr[0], out)
}
