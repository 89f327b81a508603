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

// Package bonds fetches Russian domestic bond data: instrument parameters,
// daily trading results, and the coupon, amortization and offer schedules.
// Bonds are addressed by ISIN and resolved to their security ID and primary
// board through the global security search.
package bonds

import (
	"context"
	"runtime"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/moexdata/dates"
	"github.com/stockparfait/moexdata/iss"
	"github.com/stockparfait/moexdata/iss/history"
)

// DefaultBoard is assumed when the security search does not report a primary
// board. Most corporate bonds trade there.
const DefaultBoard = history.BoardTQCB

// Security is a resolved bond identity.
type Security struct {
	SecID   string
	ISIN    string
	BoardID string // primary board
}

// Resolve finds the security ID and primary board of a bond by its ISIN.
func Resolve(ctx context.Context, isin string) (Security, error) {
	it := iss.NewQuery(iss.Endpoint{
		Path:   "securities",
		Table:  "securities",
		Schema: searchSchema,
	}).Param("q", isin).Read(ctx)
	for {
		var r searchRow
		ok, err := it.Next(&r)
		if err != nil {
			return Security{}, errors.Annotate(err, "failed to search for %s", isin)
		}
		if !ok {
			return Security{}, errors.Reason("no security found for ISIN %s", isin)
		}
		if r.ISIN != isin {
			continue
		}
		s := Security{SecID: r.SecID, ISIN: r.ISIN, BoardID: r.PrimaryBoardID}
		if s.BoardID == "" {
			s.BoardID = DefaultBoard
		}
		return s, nil
	}
}

// Description fetches the named instrument attributes of the security, e.g.
// its full name, face value, issue and maturity dates.
func Description(ctx context.Context, secID string) ([]DescriptionRow, error) {
	it := iss.NewQuery(iss.Endpoint{
		Path:   "securities/" + secID,
		Table:  "description",
		Schema: DescriptionSchema,
	}).Read(ctx)
	var res []DescriptionRow
	for {
		var r DescriptionRow
		ok, err := it.Next(&r)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read description of %s", secID)
		}
		if !ok {
			return res, nil
		}
		res = append(res, r)
	}
}

// Trading fetches the daily trading results of the bond on its primary board.
func Trading(ctx context.Context, s Security, from, till dates.Date) ([]history.Candle, error) {
	return history.Candles(ctx, history.EngineStock, history.MarketBonds,
		s.BoardID, s.SecID, from, till)
}

func bondizationEndpoint(secID, table string, schema iss.Schema) iss.Endpoint {
	return iss.Endpoint{
		Path:   "statistics/engines/stock/markets/bonds/bondization/" + secID,
		Table:  table,
		Schema: schema,
	}
}

// Coupons fetches the full coupon payment schedule of the bond.
func Coupons(ctx context.Context, secID string) ([]Coupon, error) {
	it := iss.NewQuery(bondizationEndpoint(secID, "coupons", CouponSchema)).Read(ctx)
	var res []Coupon
	for {
		var r Coupon
		ok, err := it.Next(&r)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read coupons of %s", secID)
		}
		if !ok {
			return res, nil
		}
		res = append(res, r)
	}
}

// Amortizations fetches the principal repayment schedule of the bond. A plain
// bullet bond has a single row at maturity.
func Amortizations(ctx context.Context, secID string) ([]Amortization, error) {
	it := iss.NewQuery(bondizationEndpoint(
		secID, "amortizations", AmortizationSchema)).Read(ctx)
	var res []Amortization
	for {
		var r Amortization
		ok, err := it.Next(&r)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read amortizations of %s",
				secID)
		}
		if !ok {
			return res, nil
		}
		res = append(res, r)
	}
}

// Offers fetches the put/call offer schedule of the bond, if any.
func Offers(ctx context.Context, secID string) ([]Offer, error) {
	it := iss.NewQuery(bondizationEndpoint(secID, "offers", OfferSchema)).Read(ctx)
	var res []Offer
	for {
		var r Offer
		ok, err := it.Next(&r)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read offers of %s", secID)
		}
		if !ok {
			return res, nil
		}
		res = append(res, r)
	}
}

// FindDomestic lists the currently traded bonds with a Russian domestic ISIN.
func FindDomestic(ctx context.Context) ([]history.SecurityRow, error) {
	all, err := history.Securities(ctx, history.EngineStock, history.MarketBonds, "")
	if err != nil {
		return nil, errors.Annotate(err, "failed to list bonds")
	}
	var res []history.SecurityRow
	for _, s := range all {
		if strings.HasPrefix(s.ISIN, "RU") {
			res = append(res, s)
		}
	}
	return res, nil
}

// Report is the complete collected data of a single bond.
type Report struct {
	Security      Security
	Description   []DescriptionRow
	Trading       []history.Candle
	Coupons       []Coupon
	Amortizations []Amortization
	Offers        []Offer
}

// FetchReport collects the complete report of a bond by its ISIN.
func FetchReport(ctx context.Context, isin string, from, till dates.Date) (*Report, error) {
	s, err := Resolve(ctx, isin)
	if err != nil {
		return nil, errors.Annotate(err, "failed to resolve %s", isin)
	}
	r := &Report{Security: s}
	if r.Description, err = Description(ctx, s.SecID); err != nil {
		return nil, errors.Annotate(err, "failed to fetch description of %s", isin)
	}
	if r.Trading, err = Trading(ctx, s, from, till); err != nil {
		return nil, errors.Annotate(err, "failed to fetch trading of %s", isin)
	}
	if r.Coupons, err = Coupons(ctx, s.SecID); err != nil {
		return nil, errors.Annotate(err, "failed to fetch coupons of %s", isin)
	}
	if r.Amortizations, err = Amortizations(ctx, s.SecID); err != nil {
		return nil, errors.Annotate(err, "failed to fetch amortizations of %s", isin)
	}
	if r.Offers, err = Offers(ctx, s.SecID); err != nil {
		return nil, errors.Annotate(err, "failed to fetch offers of %s", isin)
	}
	return r, nil
}

type reportResult struct {
	isin   string
	report *Report
	err    error
}

// BatchReports collects the complete reports of several bonds concurrently,
// keyed by ISIN. It returns the reports that succeeded and the first error
// encountered, if any.
func BatchReports(ctx context.Context, isins []string, from, till dates.Date) (map[string]*Report, error) {
	f := func(isin string) reportResult {
		r, err := FetchReport(ctx, isin, from, till)
		if err != nil {
			logging.Warningf(ctx, "failed to fetch %s: %s", isin, err.Error())
			return reportResult{isin: isin, err: err}
		}
		return reportResult{isin: isin, report: r}
	}
	pm := iterator.ParallelMap(ctx, 2*runtime.NumCPU(), iterator.FromSlice(isins), f)
	defer pm.Close()

	type acc struct {
		reports map[string]*Report
		err     error
	}
	a := iterator.Reduce[reportResult, acc](pm, acc{reports: map[string]*Report{}},
		func(r reportResult, a acc) acc {
			if r.err != nil {
				if a.err == nil {
					a.err = errors.Annotate(r.err, "failed to fetch %s", r.isin)
				}
				return a
			}
			a.reports[r.isin] = r.report
			return a
		})
	return a.reports, a.err
}
