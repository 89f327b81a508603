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

package history

import (
	"github.com/stockparfait/errors"
	"github.com/stockparfait/moexdata/dates"
	"github.com/stockparfait/moexdata/iss"
)

func typeErr(v iss.Value, tp string) error {
	return errors.Reason("expected %s but found %T: %v", tp, v, v)
}

func value2str(v iss.Value) (string, error) {
	if v == nil {
		return "", nil
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	return "", typeErr(v, "a string")
}

func value2num(v iss.Value) (float64, error) {
	if v == nil {
		return 0.0, nil
	}
	if num, ok := v.(float64); ok { // JSON numbers always unmarshal to float64
		return num, nil
	}
	return 0.0, typeErr(v, "a number")
}

func value2date(v iss.Value) (dates.Date, error) {
	if v == nil {
		return dates.Date{}, nil
	}
	str, ok := v.(string)
	if !ok {
		return dates.Date{}, typeErr(v, "a date string")
	}
	return dates.NewDateFromString(str)
}

func value2bool(v iss.Value) (bool, error) {
	if v == nil {
		return false, nil
	}
	// Catalog tables encode flags as 0/1 numbers.
	if num, ok := v.(float64); ok {
		return num != 0, nil
	}
	return false, typeErr(v, "a 0/1 number")
}

// Candle is a row of the daily history table of a single security. The server
// returns many more columns than declared here; the extra ones are ignored.
// VALUE is the traded money volume; VOLUME (securities count) is absent for
// indices and is loaded only when present.
type Candle struct {
	Date   dates.Date
	Open   float64
	High   float64
	Low    float64
	Close  float64
	SecID  string
	Value  float64
	Volume float64
}

var _ iss.ValueLoader = &Candle{}

// CandleSchema is the required subset of the history table columns.
var CandleSchema = iss.Schema{
	{Name: "TRADEDATE", Type: iss.TypeDate},
	{Name: "OPEN", Type: iss.TypeFloat},
	{Name: "HIGH", Type: iss.TypeFloat},
	{Name: "LOW", Type: iss.TypeFloat},
	{Name: "CLOSE", Type: iss.TypeFloat},
}

// Load implements iss.ValueLoader.
func (r *Candle) Load(v []iss.Value, c iss.Columns) error {
	if !CandleSchema.SubsetOf(c) {
		return errors.Reason("unexpected columns: %v", c)
	}
	if len(v) != len(c) {
		return errors.Reason("expected %d values, received %d: %v", len(c), len(v), v)
	}
	m := c.Index()
	var err error

	if r.Date, err = value2date(v[m["TRADEDATE"]]); err != nil {
		return errors.Annotate(err, "TRADEDATE should be a date string")
	}
	if r.Open, err = value2num(v[m["OPEN"]]); err != nil {
		return errors.Annotate(err, "OPEN should be a number")
	}
	if r.High, err = value2num(v[m["HIGH"]]); err != nil {
		return errors.Annotate(err, "HIGH should be a number")
	}
	if r.Low, err = value2num(v[m["LOW"]]); err != nil {
		return errors.Annotate(err, "LOW should be a number")
	}
	if r.Close, err = value2num(v[m["CLOSE"]]); err != nil {
		return errors.Annotate(err, "CLOSE should be a number")
	}
	if i, ok := m["SECID"]; ok {
		if r.SecID, err = value2str(v[i]); err != nil {
			return errors.Annotate(err, "SECID should be a string")
		}
	}
	if i, ok := m["VALUE"]; ok {
		if r.Value, err = value2num(v[i]); err != nil {
			return errors.Annotate(err, "VALUE should be a number")
		}
	}
	if i, ok := m["VOLUME"]; ok {
		if r.Volume, err = value2num(v[i]); err != nil {
			return errors.Annotate(err, "VOLUME should be a number")
		}
	}
	return nil
}

// EngineRow is a row of the trading engines catalog.
type EngineRow struct {
	ID    int
	Name  string
	Title string
}

var _ iss.ValueLoader = &EngineRow{}

// EngineSchema is the expected schema of the engines catalog.
var EngineSchema = iss.Schema{
	{Name: "id", Type: iss.TypeInteger},
	{Name: "name", Type: iss.TypeString},
	{Name: "title", Type: iss.TypeString},
}

// Load implements iss.ValueLoader.
func (r *EngineRow) Load(v []iss.Value, c iss.Columns) error {
	if !EngineSchema.SubsetOf(c) {
		return errors.Reason("unexpected columns: %v", c)
	}
	if len(v) != len(c) {
		return errors.Reason("expected %d values, received %d: %v", len(c), len(v), v)
	}
	m := c.Index()
	var num float64
	var err error

	if num, err = value2num(v[m["id"]]); err != nil {
		return errors.Annotate(err, "id should be a number")
	}
	r.ID = int(num)
	if r.Name, err = value2str(v[m["name"]]); err != nil {
		return errors.Annotate(err, "name should be a string")
	}
	if r.Title, err = value2str(v[m["title"]]); err != nil {
		return errors.Annotate(err, "title should be a string")
	}
	return nil
}

// MarketRow is a row of the markets catalog of an engine.
type MarketRow struct {
	ID    int
	Name  string
	Title string
}

var _ iss.ValueLoader = &MarketRow{}

// MarketSchema is the expected schema of the markets catalog.
var MarketSchema = iss.Schema{
	{Name: "id", Type: iss.TypeInteger},
	{Name: "market_name", Type: iss.TypeString},
	{Name: "market_title", Type: iss.TypeString},
}

// Load implements iss.ValueLoader.
func (r *MarketRow) Load(v []iss.Value, c iss.Columns) error {
	if !MarketSchema.SubsetOf(c) {
		return errors.Reason("unexpected columns: %v", c)
	}
	if len(v) != len(c) {
		return errors.Reason("expected %d values, received %d: %v", len(c), len(v), v)
	}
	m := c.Index()
	var num float64
	var err error

	if num, err = value2num(v[m["id"]]); err != nil {
		return errors.Annotate(err, "id should be a number")
	}
	r.ID = int(num)
	if r.Name, err = value2str(v[m["market_name"]]); err != nil {
		return errors.Annotate(err, "market_name should be a string")
	}
	if r.Title, err = value2str(v[m["market_title"]]); err != nil {
		return errors.Annotate(err, "market_title should be a string")
	}
	return nil
}

// BoardRow is a row of the boards catalog of a market.
type BoardRow struct {
	ID       int
	BoardID  string
	Title    string
	IsTraded bool
}

var _ iss.ValueLoader = &BoardRow{}

// BoardSchema is the expected schema of the boards catalog.
var BoardSchema = iss.Schema{
	{Name: "id", Type: iss.TypeInteger},
	{Name: "boardid", Type: iss.TypeString},
	{Name: "title", Type: iss.TypeString},
	{Name: "is_traded", Type: iss.TypeInteger},
}

// Load implements iss.ValueLoader.
func (r *BoardRow) Load(v []iss.Value, c iss.Columns) error {
	if !BoardSchema.SubsetOf(c) {
		return errors.Reason("unexpected columns: %v", c)
	}
	if len(v) != len(c) {
		return errors.Reason("expected %d values, received %d: %v", len(c), len(v), v)
	}
	m := c.Index()
	var num float64
	var err error

	if num, err = value2num(v[m["id"]]); err != nil {
		return errors.Annotate(err, "id should be a number")
	}
	r.ID = int(num)
	if r.BoardID, err = value2str(v[m["boardid"]]); err != nil {
		return errors.Annotate(err, "boardid should be a string")
	}
	if r.Title, err = value2str(v[m["title"]]); err != nil {
		return errors.Annotate(err, "title should be a string")
	}
	if r.IsTraded, err = value2bool(v[m["is_traded"]]); err != nil {
		return errors.Annotate(err, "is_traded should be a 0/1 number")
	}
	return nil
}

// SecurityRow is a row of the traded securities listing of a market or board.
// ISIN and FaceValue are populated for bond markets and loaded only when
// present.
type SecurityRow struct {
	SecID     string
	BoardID   string
	ShortName string
	ISIN      string
	FaceValue float64
}

var _ iss.ValueLoader = &SecurityRow{}

// SecuritySchema is the required subset of the securities listing columns.
var SecuritySchema = iss.Schema{
	{Name: "SECID", Type: iss.TypeString},
	{Name: "BOARDID", Type: iss.TypeString},
	{Name: "SHORTNAME", Type: iss.TypeString},
}

// Load implements iss.ValueLoader.
func (r *SecurityRow) Load(v []iss.Value, c iss.Columns) error {
	if !SecuritySchema.SubsetOf(c) {
		return errors.Reason("unexpected columns: %v", c)
	}
	if len(v) != len(c) {
		return errors.Reason("expected %d values, received %d: %v", len(c), len(v), v)
	}
	m := c.Index()
	var err error

	if r.SecID, err = value2str(v[m["SECID"]]); err != nil {
		return errors.Annotate(err, "SECID should be a string")
	}
	if r.BoardID, err = value2str(v[m["BOARDID"]]); err != nil {
		return errors.Annotate(err, "BOARDID should be a string")
	}
	if r.ShortName, err = value2str(v[m["SHORTNAME"]]); err != nil {
		return errors.Annotate(err, "SHORTNAME should be a string")
	}
	if i, ok := m["ISIN"]; ok {
		if r.ISIN, err = value2str(v[i]); err != nil {
			return errors.Annotate(err, "ISIN should be a string")
		}
	}
	if i, ok := m["FACEVALUE"]; ok {
		if r.FaceValue, err = value2num(v[i]); err != nil {
			return errors.Annotate(err, "FACEVALUE should be a number")
		}
	}
	return nil
}
