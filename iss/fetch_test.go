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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

var testColumns = Columns{"TRADEDATE", "CLOSE"}

// makeRows generates n distinct rows in a fixed order.
func makeRows(n int) [][]Value {
	rows := make([][]Value, n)
	for i := 0; i < n; i++ {
		rows[i] = []Value{fmt.Sprintf("D%03d", i), float64(i)}
	}
	return rows
}

// servePages implements genuine start/limit pagination over a fixed row set,
// recording the start offset of every request.
func servePages(columns Columns, rows [][]Value, starts *[]int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if starts != nil {
			*starts = append(*starts, start)
		}
		lo, hi := start, start+limit
		if lo > len(rows) {
			lo = len(rows)
		}
		if hi > len(rows) {
			hi = len(rows)
		}
		body, err := TestPage("history", columns, rows[lo:hi], len(rows))
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, body)
	}
}

// testContext injects a client pointed at the test server, with a fast retry
// delay.
func testContext(baseURL string, config Config) context.Context {
	config.BaseURL = baseURL
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Millisecond
	}
	return UseClient(context.Background(), config)
}

func TestFetch(t *testing.T) {
	t.Parallel()

	Convey("Fetch assembles pages", t, func() {
		q := NewQuery(historyEndpoint)

		Convey("250 rows with page size 100: offsets 0, 100, 200", func() {
			rows := makeRows(250)
			var starts []int
			server := httptest.NewServer(servePages(testColumns, rows, &starts))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			r, err := q.Fetch(ctx)
			So(err, ShouldBeNil)
			So(starts, ShouldResemble, []int{0, 100, 200})
			So(r.NumRows, ShouldEqual, 250)
			So(r.Columns, ShouldResemble, testColumns)
			So(r.Rows, ShouldResemble, rows)
			So(r.SourceURL, ShouldEqual, server.URL+"/"+historyEndpoint.Path+".json")
		})

		Convey("row order is preserved for any page size", func() {
			rows := makeRows(5)
			for _, pageSize := range []int{1, 2, 3, 5, 7} {
				server := httptest.NewServer(servePages(testColumns, rows, nil))
				ctx := testContext(server.URL, Config{})
				r, err := q.PageSize(pageSize).Fetch(ctx)
				server.Close()
				So(err, ShouldBeNil)
				So(r.Rows, ShouldResemble, rows)
			}
		})

		Convey("exact multiple fetches a trailing empty page", func() {
			rows := makeRows(200)
			var starts []int
			server := httptest.NewServer(servePages(testColumns, rows, &starts))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			r, err := q.Fetch(ctx)
			So(err, ShouldBeNil)
			So(starts, ShouldResemble, []int{0, 100, 200})
			So(r.NumRows, ShouldEqual, 200)
		})

		Convey("empty resource yields an empty table", func() {
			var starts []int
			server := httptest.NewServer(servePages(testColumns, nil, &starts))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			r, err := q.Fetch(ctx)
			So(err, ShouldBeNil)
			So(starts, ShouldResemble, []int{0})
			So(r.NumRows, ShouldEqual, 0)
			So(r.Columns, ShouldResemble, testColumns)
		})

		Convey("identical fetches yield identical tables", func() {
			rows := makeRows(42)
			server := httptest.NewServer(servePages(testColumns, rows, nil))
			defer server.Close()
			ctx := testContext(server.URL, Config{PageSize: 10})

			r1, err := q.Fetch(ctx)
			So(err, ShouldBeNil)
			r2, err := q.Fetch(ctx)
			So(err, ShouldBeNil)
			So(r1.Rows, ShouldResemble, r2.Rows)
			So(r1.Columns, ShouldResemble, r2.Columns)
			So(r1.NumRows, ShouldEqual, r2.NumRows)
		})

		Convey("client default page size applies", func() {
			rows := makeRows(5)
			var starts []int
			server := httptest.NewServer(servePages(testColumns, rows, &starts))
			defer server.Close()
			ctx := testContext(server.URL, Config{PageSize: 2})

			r, err := q.Fetch(ctx)
			So(err, ShouldBeNil)
			So(starts, ShouldResemble, []int{0, 2, 4})
			So(r.NumRows, ShouldEqual, 5)
		})

		Convey("Start resumes from a later offset", func() {
			rows := makeRows(250)
			var starts []int
			server := httptest.NewServer(servePages(testColumns, rows, &starts))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			r, err := q.Start(100).Fetch(ctx)
			So(err, ShouldBeNil)
			So(starts, ShouldResemble, []int{100, 200})
			So(r.Rows, ShouldResemble, rows[100:])
		})

		Convey("declared total is advisory only", func() {
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					// 3 rows, short page, but the cursor claims 500.
					body, _ := TestPage("history", testColumns, makeRows(3), 500)
					fmt.Fprint(w, body)
				}))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			r, err := q.Fetch(ctx)
			So(err, ShouldBeNil)
			So(r.NumRows, ShouldEqual, 3)
		})

		Convey("credentials are sent as basic auth", func() {
			var user, pass string
			var withAuth bool
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					user, pass, withAuth = r.BasicAuth()
					servePages(testColumns, makeRows(1), nil)(w, r)
				}))
			defer server.Close()
			ctx := testContext(server.URL, Config{Username: "user", Password: "secret"})

			_, err := q.Fetch(ctx)
			So(err, ShouldBeNil)
			So(withAuth, ShouldBeTrue)
			So(user, ShouldEqual, "user")
			So(pass, ShouldEqual, "secret")
		})

		Convey("no client in context", func() {
			_, err := q.Fetch(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRetry(t *testing.T) {
	t.Parallel()

	Convey("Retry policy", t, func() {
		q := NewQuery(historyEndpoint)
		rows := makeRows(250)

		Convey("two transient failures then success is a clean result", func() {
			failures := 0
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					if failures < 2 {
						failures++
						w.WriteHeader(http.StatusInternalServerError)
						return
					}
					servePages(testColumns, rows, nil)(w, r)
				}))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			r, err := q.Fetch(ctx)
			So(err, ShouldBeNil)
			So(failures, ShouldEqual, 2)
			So(r.Rows, ShouldResemble, rows)
		})

		Convey("exhausted retries fail the whole fetch", func() {
			requests := 0
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					requests++
					w.WriteHeader(http.StatusInternalServerError)
				}))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			r, err := q.Fetch(ctx)
			So(r, ShouldBeNil)
			So(requests, ShouldEqual, DefaultMaxRetries)
			So(KindOf(err), ShouldEqual, KindExhausted)
			var e *Error
			So(errors.As(err, &e), ShouldBeTrue)
			So(e.Offset, ShouldEqual, 0)
		})

		Convey("mid-fetch exhaustion reports the failing offset, no partial table", func() {
			attempts200 := 0
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					if r.URL.Query().Get("start") == "200" {
						attempts200++
						w.WriteHeader(http.StatusInternalServerError)
						return
					}
					servePages(testColumns, rows, nil)(w, r)
				}))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			r, err := q.Fetch(ctx)
			So(r, ShouldBeNil)
			So(attempts200, ShouldEqual, DefaultMaxRetries)
			var e *Error
			So(errors.As(err, &e), ShouldBeTrue)
			So(e.Kind, ShouldEqual, KindExhausted)
			So(e.Offset, ShouldEqual, 200)
		})

		Convey("a garbled body is retried as transient", func() {
			failures := 0
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					if failures < 1 {
						failures++
						fmt.Fprint(w, `{"history": truncated`)
						return
					}
					servePages(testColumns, rows, nil)(w, r)
				}))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			r, err := q.Fetch(ctx)
			So(err, ShouldBeNil)
			So(r.NumRows, ShouldEqual, 250)
		})

		Convey("auth rejection is not retried", func() {
			requests := 0
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					requests++
					w.WriteHeader(http.StatusUnauthorized)
				}))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			_, err := q.Fetch(ctx)
			So(requests, ShouldEqual, 1)
			So(KindOf(err), ShouldEqual, KindAuth)
		})

		Convey("unknown resource is not retried", func() {
			requests := 0
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					requests++
					w.WriteHeader(http.StatusNotFound)
				}))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			_, err := q.Fetch(ctx)
			So(requests, ShouldEqual, 1)
			So(KindOf(err), ShouldEqual, KindBadRequest)
		})
	})
}

func TestParseFailures(t *testing.T) {
	t.Parallel()

	Convey("Shape mismatches are parse failures, not retried", t, func() {
		q := NewQuery(historyEndpoint)

		serveBody := func(requests *int, body func() string) *httptest.Server {
			return httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					*requests++
					fmt.Fprint(w, body())
				}))
		}

		Convey("row with a mismatched column count", func() {
			requests := 0
			server := serveBody(&requests, func() string {
				body, _ := TestPage("history", testColumns,
					[][]Value{{"D000", 1.0}, {"D001"}}, -1)
				return body
			})
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			r, err := q.Fetch(ctx)
			So(r, ShouldBeNil)
			So(requests, ShouldEqual, 1)
			So(KindOf(err), ShouldEqual, KindParse)
		})

		Convey("missing table block", func() {
			requests := 0
			server := serveBody(&requests, func() string {
				body, _ := TestPage("securities", testColumns, makeRows(1), -1)
				return body
			})
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			_, err := q.Fetch(ctx)
			So(requests, ShouldEqual, 1)
			So(KindOf(err), ShouldEqual, KindParse)
		})

		Convey("received columns missing a declared column", func() {
			requests := 0
			server := serveBody(&requests, func() string {
				body, _ := TestPage("history", Columns{"TRADEDATE", "OPEN"},
					[][]Value{{"D000", 1.0}}, -1)
				return body
			})
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			_, err := q.Fetch(ctx)
			So(requests, ShouldEqual, 1)
			So(KindOf(err), ShouldEqual, KindParse)
		})

		Convey("columns changing between pages", func() {
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					var body string
					if r.URL.Query().Get("start") == "0" {
						body, _ = TestPage("history", testColumns,
							[][]Value{{"D000", 1.0}, {"D001", 2.0}}, -1)
					} else {
						// Still a schema superset, but reordered.
						body, _ = TestPage("history",
							Columns{"CLOSE", "TRADEDATE", "EXTRA"},
							[][]Value{{3.0, "D002", "x"}}, -1)
					}
					fmt.Fprint(w, body)
				}))
			defer server.Close()
			ctx := testContext(server.URL, Config{PageSize: 2})

			_, err := q.Fetch(ctx)
			var e *Error
			So(errors.As(err, &e), ShouldBeTrue)
			So(e.Kind, ShouldEqual, KindParse)
			So(e.Offset, ShouldEqual, 2)
		})
	})
}

type testRow struct {
	Date  string
	Close float64
}

var _ ValueLoader = &testRow{}

func (t *testRow) Load(v []Value, c Columns) error {
	if !historyEndpoint.Schema.SubsetOf(c) {
		return fmt.Errorf("testRow.Load: unexpected columns: %v", c)
	}
	m := c.Index()
	var ok bool
	if t.Date, ok = v[m["TRADEDATE"]].(string); !ok {
		return fmt.Errorf("testRow.Load: TRADEDATE is not a string: %v", v[m["TRADEDATE"]])
	}
	if t.Close, ok = v[m["CLOSE"]].(float64); !ok {
		return fmt.Errorf("testRow.Load: CLOSE is not a number: %v", v[m["CLOSE"]])
	}
	return nil
}

func rowsAll(it *RowIterator) ([]*testRow, error) {
	rows := []*testRow{}
	for {
		row := testRow{}
		ok, err := it.Next(&row)
		if !ok {
			return rows, err
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, &row)
		if len(rows) > 1000 {
			return nil, fmt.Errorf("rowsAll: too many rows - %d", len(rows))
		}
	}
}

func TestRowIterator(t *testing.T) {
	t.Parallel()

	Convey("RowIterator pages transparently", t, func() {
		q := NewQuery(historyEndpoint)

		Convey("typed rows across multiple pages", func() {
			var starts []int
			server := httptest.NewServer(servePages(testColumns, makeRows(5), &starts))
			defer server.Close()
			ctx := testContext(server.URL, Config{PageSize: 2})

			rows, err := rowsAll(q.Read(ctx))
			So(err, ShouldBeNil)
			So(starts, ShouldResemble, []int{0, 2, 4})
			So(rows, ShouldResemble, []*testRow{
				{"D000", 0}, {"D001", 1}, {"D002", 2}, {"D003", 3}, {"D004", 4},
			})
		})

		Convey("load failure surfaces the parse error", func() {
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					body, _ := TestPage("history", testColumns,
						[][]Value{{"D000", "not a number"}}, -1)
					fmt.Fprint(w, body)
				}))
			defer server.Close()
			ctx := testContext(server.URL, Config{})

			var row testRow
			ok, err := q.Read(ctx).Next(&row)
			So(ok, ShouldBeTrue)
			So(err, ShouldNotBeNil)
		})

		Convey("no client in context", func() {
			var row testRow
			ok, err := q.Read(context.Background()).Next(&row)
			So(ok, ShouldBeFalse)
			So(err, ShouldNotBeNil)
		})
	})
}
