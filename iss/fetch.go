// Copyright 2025 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package iss

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/moexdata/table"
)

// rawTable is the wire shape of a single response block.
type rawTable struct {
	Columns Columns   `json:"columns"`
	Data    [][]Value `json:"data"`
}

// page is one decoded response unit: the rows starting at an implicit offset,
// plus the advisory total row count from the cursor block, if any (-1 when
// absent).
type page struct {
	Columns Columns
	Rows    [][]Value
	Total   int
}

// TestPage generates the JSON string in the format returned by the ISS table
// API: the named block plus, when total >= 0, the advisory cursor block. For
// use in tests.
func TestPage(table string, columns Columns, rows [][]Value, total int) (string, error) {
	body := map[string]rawTable{
		table: {Columns: columns, Data: rows},
	}
	if total >= 0 {
		body[table+".cursor"] = rawTable{
			Columns: Columns{"INDEX", "TOTAL", "PAGESIZE"},
			Data:    [][]Value{{0, total, len(rows)}},
		}
	}
	bytes, err := json.Marshal(body)
	return string(bytes), err
}

// cursorTotal extracts the declared TOTAL from the cursor block, or -1.
func cursorTotal(cursor rawTable, ok bool) int {
	if !ok || len(cursor.Data) == 0 {
		return -1
	}
	idx, found := cursor.Columns.Index()["TOTAL"]
	if !found || idx >= len(cursor.Data[0]) {
		return -1
	}
	total, isNum := cursor.Data[0][idx].(float64)
	if !isNum {
		return -1
	}
	return int(total)
}

// fetchPage requests and decodes a single page at the given offset, one
// attempt, classifying any failure by its ErrorKind.
func (c *Client) fetchPage(ctx context.Context, q *Query, offset, limit int) (*page, error) {
	values := q.Values()
	values.Set("start", strconv.Itoa(offset))
	values.Set("limit", strconv.Itoa(limit))
	uri := q.URL(c) + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, pageError(KindBadRequest, offset,
			errors.Annotate(err, "failed to create request"))
	}
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pageError(KindNetwork, offset,
			errors.Annotate(err, "request failed"))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, pageError(KindAuth, offset,
			fmt.Errorf("server rejected credentials with status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, pageError(KindNetwork, offset,
			fmt.Errorf("server error status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, pageError(KindBadRequest, offset,
			fmt.Errorf("request rejected with status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pageError(KindNetwork, offset,
			errors.Annotate(err, "failed to read response body"))
	}
	var blocks map[string]rawTable
	if err := json.Unmarshal(body, &blocks); err != nil {
		// A truncated or garbled body is a transient condition, unlike a shape
		// mismatch below.
		return nil, pageError(KindNetwork, offset,
			errors.Annotate(err, "response is not valid JSON"))
	}

	block, ok := blocks[q.endpoint.Table]
	if !ok {
		return nil, pageError(KindParse, offset,
			errors.Reason("response has no '%s' table", q.endpoint.Table))
	}
	if !q.endpoint.Schema.SubsetOf(block.Columns) {
		return nil, pageError(KindParse, offset,
			errors.Reason("received columns %v do not contain declared schema %s",
				block.Columns, q.endpoint.Schema.String()))
	}
	for i, row := range block.Data {
		if len(row) != len(block.Columns) {
			return nil, pageError(KindParse, offset,
				errors.Reason("row %d has %d values, expected %d",
					i, len(row), len(block.Columns)))
		}
	}
	cursor, ok := blocks[q.endpoint.Table+".cursor"]
	return &page{
		Columns: block.Columns,
		Rows:    block.Data,
		Total:   cursorTotal(cursor, ok),
	}, nil
}

// readPage fetches one page at the given offset with the client's retry
// policy.
func (c *Client) readPage(ctx context.Context, q *Query, offset, limit int) (*page, error) {
	var p *page
	err := c.withRetry(ctx, offset, func() error {
		var err error
		p, err = c.fetchPage(ctx, q, offset, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Result of a complete fetch: the assembled table and its provenance.
// Immutable after construction. Persistence is a caller concern.
type Result struct {
	Columns   Columns
	Rows      [][]Value // all pages' rows, in retrieval order
	SourceURL string    // endpoint URL without paging controls
	FetchedAt time.Time
	NumRows   int
}

// ValueString formats a single cell for tabular output. Values are forwarded
// as received, not transformed.
func ValueString(v Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Table converts the result to a table.Table for CSV or text output.
func (r *Result) Table() *table.Table {
	t := table.New(r.Columns...)
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = ValueString(v)
		}
		t.Append(cells)
	}
	return t
}

// Fetch pages through the entire resource and assembles all rows into one
// Result in retrieval order. On any failure it returns a nil Result and an
// error reporting the failing page offset; rows already accumulated are
// discarded, never returned silently.
func (q *Query) Fetch(ctx context.Context) (*Result, error) {
	client := GetClient(ctx)
	if client == nil {
		return nil, errors.Reason("Query.Fetch: no client in context")
	}
	limit := q.options.PageSize
	if limit == 0 {
		limit = client.config.PageSize
	}
	offset := q.options.Start
	total := -1
	var columns Columns
	var rows [][]Value

	for {
		p, err := client.readPage(ctx, q, offset, limit)
		if err != nil {
			// The typed *Error is the caller's contract; no further wrapping.
			return nil, err
		}
		if columns == nil {
			columns = p.Columns
		} else if !columns.Equal(p.Columns) {
			return nil, pageError(KindParse, offset,
				errors.Reason("columns changed between pages: %v != %v",
					p.Columns, columns))
		}
		rows = append(rows, p.Rows...)
		if p.Total >= 0 {
			total = p.Total
		}
		logging.Debugf(ctx, "MOEX ISS: fetched page at offset %d with %d rows",
			offset, len(p.Rows))
		// Short or empty page is the only exhaustion signal.
		if len(p.Rows) < limit {
			break
		}
		offset += limit
	}
	if total >= 0 && total != len(rows) {
		// The declared total is advisory only; reconciling it with the actual
		// row count is not this client's job.
		logging.Warningf(ctx, "MOEX ISS: declared total %d != %d received rows",
			total, len(rows))
	}
	return &Result{
		Columns:   columns,
		Rows:      rows,
		SourceURL: q.URL(client),
		FetchedAt: time.Now(),
		NumRows:   len(rows),
	}, nil
}

// ValueLoader is the interface that a row type of a specific table must
// implement.
type ValueLoader interface {
	Load(v []Value, c Columns) error
}

// RowIterator iterates over query results row by row. Paging is handled
// transparently.
type RowIterator struct {
	context context.Context
	query   *Query
	page    page
	limit   int
	offset  int
	index   int  // the data element for Next() to return
	started bool // if at least one page was ever requested
	done    bool // the final short page was received
}

// Read sets up the iterator over the result rows, which will execute the
// query as needed and handle paging transparently.
func (q *Query) Read(ctx context.Context) *RowIterator {
	return &RowIterator{context: ctx, query: q}
}

// nextPage fetches and populates the iterator with the next page of data.
// When there are no more pages to load, or loading a page results in an
// error, the first return value becomes false.
func (it *RowIterator) nextPage() (bool, error) {
	if it.started && it.done {
		return false, nil
	}
	client := GetClient(it.context)
	if client == nil {
		return false, errors.Reason("RowIterator: no client in context")
	}
	if !it.started {
		it.limit = it.query.options.PageSize
		if it.limit == 0 {
			it.limit = client.config.PageSize
		}
		it.offset = it.query.options.Start
	}
	it.started = true
	p, err := client.readPage(it.context, it.query, it.offset, it.limit)
	if err != nil {
		return false, err
	}
	it.page = *p
	it.index = 0
	if len(p.Rows) < it.limit {
		it.done = true
	}
	it.offset += it.limit
	return true, nil
}

// Next loads the next row. If there are no more rows, the second value is
// false. Note, that error may be non-nil regardless of the end of iterator.
func (it *RowIterator) Next(row ValueLoader) (bool, error) {
	if it.query == nil {
		return false, nil
	}
	if !it.started {
		if ok, err := it.nextPage(); !ok {
			return false, err
		}
	}
	if it.index >= len(it.page.Rows) {
		if ok, err := it.nextPage(); !ok {
			return false, err
		}
	}
	if it.index >= len(it.page.Rows) {
		return false, nil
	}
	err := row.Load(it.page.Rows[it.index], it.page.Columns)
	it.index++
	if err != nil {
		return true, errors.Annotate(err, "failed to parse row %d at offset %d",
			it.index, it.offset-it.limit)
	}
	return true, nil
}
