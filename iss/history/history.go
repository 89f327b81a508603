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

// Package history fetches the MOEX reference catalogs and the daily trading
// history of individual securities.
package history

import (
	"context"
	"runtime"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/moexdata/dates"
	"github.com/stockparfait/moexdata/iss"
)

type Engine = string

// Trading engines.
const (
	EngineStock     = Engine("stock")
	EngineCurrency  = Engine("currency")
	EngineFutures   = Engine("futures")
	EngineCommodity = Engine("commodity")
)

type Market = string

// Markets of the stock engine.
const (
	MarketIndex  = Market("index")
	MarketShares = Market("shares")
	MarketBonds  = Market("bonds")
	MarketRepo   = Market("repo")
)

type Board = string

// Commonly used boards.
const (
	BoardSNDX = Board("SNDX") // main indices
	BoardRTSI = Board("RTSI") // RTS indices
	BoardTQBR = Board("TQBR") // main shares
	BoardTQCB = Board("TQCB") // main corporate bonds
	BoardTQOB = Board("TQOB") // main government bonds
)

// Engines fetches the catalog of trading engines.
func Engines(ctx context.Context) ([]EngineRow, error) {
	it := iss.NewQuery(iss.Endpoint{
		Path:   "engines",
		Table:  "engines",
		Schema: EngineSchema,
	}).Read(ctx)
	var res []EngineRow
	for {
		var r EngineRow
		ok, err := it.Next(&r)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read engines")
		}
		if !ok {
			return res, nil
		}
		res = append(res, r)
	}
}

// Markets fetches the catalog of markets of the engine.
func Markets(ctx context.Context, engine Engine) ([]MarketRow, error) {
	it := iss.NewQuery(iss.Endpoint{
		Path:   "engines/" + engine + "/markets",
		Table:  "markets",
		Schema: MarketSchema,
	}).Read(ctx)
	var res []MarketRow
	for {
		var r MarketRow
		ok, err := it.Next(&r)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read %s markets", engine)
		}
		if !ok {
			return res, nil
		}
		res = append(res, r)
	}
}

// Boards fetches the catalog of boards of the market.
func Boards(ctx context.Context, engine Engine, market Market) ([]BoardRow, error) {
	it := iss.NewQuery(iss.Endpoint{
		Path:   "engines/" + engine + "/markets/" + market + "/boards",
		Table:  "boards",
		Schema: BoardSchema,
	}).Read(ctx)
	var res []BoardRow
	for {
		var r BoardRow
		ok, err := it.Next(&r)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read %s/%s boards",
				engine, market)
		}
		if !ok {
			return res, nil
		}
		res = append(res, r)
	}
}

// SecuritiesEndpoint is the listing of currently traded securities of the
// market, optionally narrowed to a single board with board != "".
func SecuritiesEndpoint(engine Engine, market Market, board Board) iss.Endpoint {
	path := "engines/" + engine + "/markets/" + market
	if board != "" {
		path += "/boards/" + board
	}
	return iss.Endpoint{
		Path:   path + "/securities",
		Table:  "securities",
		Schema: SecuritySchema,
	}
}

// Securities fetches the listing of currently traded securities of the market,
// optionally narrowed to a single board with board != "".
func Securities(ctx context.Context, engine Engine, market Market, board Board) ([]SecurityRow, error) {
	it := iss.NewQuery(SecuritiesEndpoint(engine, market, board)).Read(ctx)
	var res []SecurityRow
	for {
		var r SecurityRow
		ok, err := it.Next(&r)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read %s/%s securities",
				engine, market)
		}
		if !ok {
			return res, nil
		}
		res = append(res, r)
	}
}

// Endpoint is the daily trading history of a single security on a board.
func Endpoint(engine Engine, market Market, board Board, security string) iss.Endpoint {
	return iss.Endpoint{
		Path: "history/engines/" + engine + "/markets/" + market +
			"/boards/" + board + "/securities/" + security,
		Table:  "history",
		Schema: CandleSchema,
	}
}

// Query creates a history query for the security, with the from / till date
// filters when non-zero.
func Query(engine Engine, market Market, board Board, security string, from, till dates.Date) *iss.Query {
	q := iss.NewQuery(Endpoint(engine, market, board, security))
	if !from.IsZero() {
		q = q.From(from)
	}
	if !till.IsZero() {
		q = q.Till(till)
	}
	return q
}

// Candles fetches the daily history of the security in chronological order, as
// served.
func Candles(ctx context.Context, engine Engine, market Market, board Board, security string, from, till dates.Date) ([]Candle, error) {
	it := Query(engine, market, board, security, from, till).Read(ctx)
	var res []Candle
	for {
		var r Candle
		ok, err := it.Next(&r)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read history of %s", security)
		}
		if !ok {
			return res, nil
		}
		res = append(res, r)
	}
}

// IndexBoard picks the listing board of the index by its ticker. RTS family
// indices live on their own board.
func IndexBoard(index string) Board {
	if strings.HasPrefix(index, "RTS") {
		return BoardRTSI
	}
	return BoardSNDX
}

// IndexCandles fetches the daily history of a stock or bond index, e.g.
// "IMOEX", "RTSI" or "RGBITR".
func IndexCandles(ctx context.Context, index string, from, till dates.Date) ([]Candle, error) {
	return Candles(ctx, EngineStock, MarketIndex, IndexBoard(index), index, from, till)
}

type candlesResult struct {
	secID   string
	candles []Candle
	err     error
}

// BatchCandles fetches the daily histories of several securities of the same
// board concurrently. It returns the histories of the securities that
// succeeded keyed by security ID, and the first error encountered, if any.
func BatchCandles(ctx context.Context, engine Engine, market Market, board Board, securities []string, from, till dates.Date) (map[string][]Candle, error) {
	f := func(secID string) candlesResult {
		candles, err := Candles(ctx, engine, market, board, secID, from, till)
		if err != nil {
			logging.Warningf(ctx, "failed to fetch %s: %s", secID, err.Error())
			return candlesResult{secID: secID, err: err}
		}
		return candlesResult{secID: secID, candles: candles}
	}
	pm := iterator.ParallelMap(ctx, 2*runtime.NumCPU(),
		iterator.FromSlice(securities), f)
	defer pm.Close()

	type acc struct {
		candles map[string][]Candle
		err     error
	}
	a := iterator.Reduce[candlesResult, acc](pm, acc{candles: map[string][]Candle{}},
		func(r candlesResult, a acc) acc {
			if r.err != nil {
				if a.err == nil {
					a.err = errors.Annotate(r.err, "failed to fetch %s", r.secID)
				}
				return a
			}
			a.candles[r.secID] = r.candles
			return a
		})
	return a.candles, a.err
}
