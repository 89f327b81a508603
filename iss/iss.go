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
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stockparfait/moexdata/dates"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// DefaultURL is the base URL of the public ISS server.
const DefaultURL = "https://iss.moex.com/iss"

// Defaults for the Config zero values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultPageSize   = 100
)

// Config of a Client. The zero value selects the public server with no
// credentials and the default timeouts and page size. Each Client carries its
// own Config, so clients with different credentials can coexist.
type Config struct {
	BaseURL  string // default: DefaultURL
	Username string // optional basic-auth credentials
	Password string
	Timeout  time.Duration // per page request; default: DefaultTimeout
	// MaxRetries is the number of attempts for a single page, including the
	// initial request. Default: DefaultMaxRetries.
	MaxRetries int
	// RetryDelay is the backoff before the second attempt; it doubles for each
	// subsequent attempt. Default: DefaultRetryDelay.
	RetryDelay time.Duration
	PageSize   int // rows per page request; default: DefaultPageSize
}

// Client for querying ISS tables. Create it with NewClient and inject into
// the context with UseClient.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a new client, filling in the config defaults.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if config.PageSize == 0 {
		config.PageSize = DefaultPageSize
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client from the config and injects it into the
// context.
func UseClient(ctx context.Context, config Config) context.Context {
	return context.WithValue(ctx, clientContextKey, NewClient(config))
}

// Value is an arbitrary value of a table cell.
type Value interface{}

// FieldType is the coarse type of a declared column.
type FieldType string

// Values for FieldType.
const (
	TypeString  = FieldType("string")
	TypeInteger = FieldType("integer")
	TypeFloat   = FieldType("float")
	TypeDate    = FieldType("date")
)

// SchemaField is the declaration of a single expected table column.
type SchemaField struct {
	Name string
	Type FieldType
}

// Schema is the caller-declared shape of an endpoint's table: the expected
// columns in their expected order. The server may return a superset.
type Schema []SchemaField

// Names lists the declared column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// SubsetOf tests if all of the declared columns are present in the received
// column list. This keeps loaders working when the server adds new columns.
func (s Schema) SubsetOf(c Columns) bool {
	m := make(map[string]struct{})
	for _, name := range c {
		m[name] = struct{}{}
	}
	for _, f := range s {
		if _, ok := m[f.Name]; !ok {
			return false
		}
	}
	return true
}

// String prints a string representation of the schema.
func (s Schema) String() string {
	fields := []string{}
	for _, f := range s {
		fields = append(fields, fmt.Sprintf("%s: %s", f.Name, f.Type))
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

// Columns is the ordered column name list as received in a response block.
type Columns []string

// Index creates a map of {column name -> column position}.
func (c Columns) Index() map[string]int {
	res := make(map[string]int)
	for i, name := range c {
		res[name] = i
	}
	return res
}

// Equal tests two column lists for exact equality, including ordering.
func (c Columns) Equal(c2 Columns) bool {
	if len(c) != len(c2) {
		return false
	}
	for i, name := range c {
		if name != c2[i] {
			return false
		}
	}
	return true
}

// Endpoint describes one remote tabular resource: the URL path under the base
// URL, the response block holding the table, and the expected column schema.
// Endpoints are immutable values supplied by the caller per query.
type Endpoint struct {
	Path   string // e.g. "engines/stock/markets/index/boards/SNDX/securities/IMOEX"
	Table  string // response block name, e.g. "history" or "securities"
	Schema Schema
}

// queryParam is a single query key-value pair.
type queryParam struct {
	Key   string
	Value string
}

// queryOptions are options common to all endpoints.
type queryOptions struct {
	Columns  []string // if non-nil, request only these columns
	PageSize int      // rows per page; 0 = client default
	Start    int      // initial row offset, for manual resumption
}

// Query is a builder for a paginated table query.
type Query struct {
	endpoint Endpoint
	params   []queryParam
	options  queryOptions
}

// NewQuery creates a new query for the endpoint.
func NewQuery(endpoint Endpoint) *Query {
	return &Query{endpoint: endpoint}
}

// Copy creates a deep copy of the query. It is primarily used in its builder
// methods.
func (q *Query) Copy() *Query {
	q2 := Query{endpoint: q.endpoint, options: q.options}
	q2.params = make([]queryParam, len(q.params))
	copy(q2.params, q.params)
	return &q2
}

// Param adds a query parameter passed through to the server untransformed.
// This and other builder methods always create a deep copy of the query,
// leaving the original intact.
func (q *Query) Param(key, value string) *Query {
	q2 := q.Copy()
	q2.params = append(q2.params, queryParam{key, value})
	return q2
}

// From sets the inclusive start date filter, normalized to YYYY-MM-DD.
func (q *Query) From(d dates.Date) *Query {
	return q.Param("from", d.String())
}

// Till sets the inclusive end date filter, normalized to YYYY-MM-DD.
func (q *Query) Till(d dates.Date) *Query {
	return q.Param("till", d.String())
}

// Columns constrains the requested table to only these columns.
func (q *Query) Columns(columns ...string) *Query {
	q2 := q.Copy()
	q2.options.Columns = columns
	return q2
}

// PageSize sets the number of rows per page request, overriding the client
// default. Values < 1 select the default.
func (q *Query) PageSize(size int) *Query {
	if size < 1 {
		size = 0
	}
	q2 := q.Copy()
	q2.options.PageSize = size
	return q2
}

// Start sets the initial row offset. The default is 0; a caller may resume a
// previously failed fetch from the offset reported in its error.
func (q *Query) Start(offset int) *Query {
	if offset < 0 {
		offset = 0
	}
	q2 := q.Copy()
	q2.options.Start = offset
	return q2
}

// Values returns the static query values for the query, without the paging
// controls added per request. Each call creates a new object, so the caller
// is free to modify it without affecting the query.
func (q *Query) Values() url.Values {
	v := make(url.Values)
	v.Set("iss.meta", "off")
	v.Set("lang", "en")
	for _, p := range q.params {
		v.Set(p.Key, p.Value)
	}
	if q.options.Columns != nil {
		v.Set(q.endpoint.Table+".columns", strings.Join(q.options.Columns, ","))
	}
	return v
}

// URL of the query against the given client, without paging controls. It is
// reported back to the caller as fetch provenance.
func (q *Query) URL(client *Client) string {
	return client.config.BaseURL + "/" + q.endpoint.Path + ".json"
}
