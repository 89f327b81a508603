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

package bonds

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

// searchRow is a row of the global security search table.
type searchRow struct {
	SecID          string
	ISIN           string
	PrimaryBoardID string
}

var _ iss.ValueLoader = &searchRow{}

var searchSchema = iss.Schema{
	{Name: "secid", Type: iss.TypeString},
	{Name: "isin", Type: iss.TypeString},
}

func (r *searchRow) Load(v []iss.Value, c iss.Columns) error {
	if !searchSchema.SubsetOf(c) {
		return errors.Reason("unexpected columns: %v", c)
	}
	if len(v) != len(c) {
		return errors.Reason("expected %d values, received %d: %v", len(c), len(v), v)
	}
	m := c.Index()
	var err error

	if r.SecID, err = value2str(v[m["secid"]]); err != nil {
		return errors.Annotate(err, "secid should be a string")
	}
	if r.ISIN, err = value2str(v[m["isin"]]); err != nil {
		return errors.Annotate(err, "isin should be a string")
	}
	if i, ok := m["primary_boardid"]; ok {
		if r.PrimaryBoardID, err = value2str(v[i]); err != nil {
			return errors.Annotate(err, "primary_boardid should be a string")
		}
	}
	return nil
}

// DescriptionRow is one named attribute of a security from its description
// block.
type DescriptionRow struct {
	Name  string
	Title string
	Value string
}

var _ iss.ValueLoader = &DescriptionRow{}

// DescriptionSchema is the expected schema of the security description block.
var DescriptionSchema = iss.Schema{
	{Name: "name", Type: iss.TypeString},
	{Name: "title", Type: iss.TypeString},
	{Name: "value", Type: iss.TypeString},
}

// Load implements iss.ValueLoader.
func (r *DescriptionRow) Load(v []iss.Value, c iss.Columns) error {
	if !DescriptionSchema.SubsetOf(c) {
		return errors.Reason("unexpected columns: %v", c)
	}
	if len(v) != len(c) {
		return errors.Reason("expected %d values, received %d: %v", len(c), len(v), v)
	}
	m := c.Index()
	var err error

	if r.Name, err = value2str(v[m["name"]]); err != nil {
		return errors.Annotate(err, "name should be a string")
	}
	if r.Title, err = value2str(v[m["title"]]); err != nil {
		return errors.Annotate(err, "title should be a string")
	}
	// The value column mixes strings and numbers depending on the attribute.
	switch val := v[m["value"]].(type) {
	case nil:
		r.Value = ""
	case string:
		r.Value = val
	default:
		r.Value = iss.ValueString(val)
	}
	return nil
}

// Coupon is a row of the coupon payment schedule of a bond.
type Coupon struct {
	Date         dates.Date // payment date
	StartDate    dates.Date // accrual period start
	RecordDate   dates.Date // holder registry fixing date
	FaceValue    float64
	Value        float64 // payment per bond, in face currency
	ValuePercent float64 // annualized rate
}

var _ iss.ValueLoader = &Coupon{}

// CouponSchema is the required subset of the coupons table columns.
var CouponSchema = iss.Schema{
	{Name: "coupondate", Type: iss.TypeDate},
	{Name: "facevalue", Type: iss.TypeFloat},
	{Name: "value", Type: iss.TypeFloat},
	{Name: "valueprc", Type: iss.TypeFloat},
}

// Load implements iss.ValueLoader.
func (r *Coupon) Load(v []iss.Value, c iss.Columns) error {
	if !CouponSchema.SubsetOf(c) {
		return errors.Reason("unexpected columns: %v", c)
	}
	if len(v) != len(c) {
		return errors.Reason("expected %d values, received %d: %v", len(c), len(v), v)
	}
	m := c.Index()
	var err error

	if r.Date, err = value2date(v[m["coupondate"]]); err != nil {
		return errors.Annotate(err, "coupondate should be a date string")
	}
	if r.FaceValue, err = value2num(v[m["facevalue"]]); err != nil {
		return errors.Annotate(err, "facevalue should be a number")
	}
	if r.Value, err = value2num(v[m["value"]]); err != nil {
		return errors.Annotate(err, "value should be a number")
	}
	if r.ValuePercent, err = value2num(v[m["valueprc"]]); err != nil {
		return errors.Annotate(err, "valueprc should be a number")
	}
	if i, ok := m["startdate"]; ok {
		if r.StartDate, err = value2date(v[i]); err != nil {
			return errors.Annotate(err, "startdate should be a date string")
		}
	}
	if i, ok := m["recorddate"]; ok {
		if r.RecordDate, err = value2date(v[i]); err != nil {
			return errors.Annotate(err, "recorddate should be a date string")
		}
	}
	return nil
}

// Amortization is a row of the principal repayment schedule of a bond.
type Amortization struct {
	Date         dates.Date // repayment date
	FaceValue    float64    // face value after this repayment
	Value        float64    // repayment per bond, in face currency
	ValuePercent float64    // share of the initial face value
}

var _ iss.ValueLoader = &Amortization{}

// AmortizationSchema is the required subset of the amortizations table columns.
var AmortizationSchema = iss.Schema{
	{Name: "amortdate", Type: iss.TypeDate},
	{Name: "facevalue", Type: iss.TypeFloat},
	{Name: "value", Type: iss.TypeFloat},
	{Name: "valueprc", Type: iss.TypeFloat},
}

// Load implements iss.ValueLoader.
func (r *Amortization) Load(v []iss.Value, c iss.Columns) error {
	if !AmortizationSchema.SubsetOf(c) {
		return errors.Reason("unexpected columns: %v", c)
	}
	if len(v) != len(c) {
		return errors.Reason("expected %d values, received %d: %v", len(c), len(v), v)
	}
	m := c.Index()
	var err error

	if r.Date, err = value2date(v[m["amortdate"]]); err != nil {
		return errors.Annotate(err, "amortdate should be a date string")
	}
	if r.FaceValue, err = value2num(v[m["facevalue"]]); err != nil {
		return errors.Annotate(err, "facevalue should be a number")
	}
	if r.Value, err = value2num(v[m["value"]]); err != nil {
		return errors.Annotate(err, "value should be a number")
	}
	if r.ValuePercent, err = value2num(v[m["valueprc"]]); err != nil {
		return errors.Annotate(err, "valueprc should be a number")
	}
	return nil
}

// Offer is a row of the put/call offer schedule of a bond.
type Offer struct {
	Date      dates.Date // offer settlement date
	StartDate dates.Date // application window start
	EndDate   dates.Date // application window end
	Price     float64    // buyback price, percent of face value
	OfferType string
	Agent     string
}

var _ iss.ValueLoader = &Offer{}

// OfferSchema is the required subset of the offers table columns.
var OfferSchema = iss.Schema{
	{Name: "offerdate", Type: iss.TypeDate},
	{Name: "price", Type: iss.TypeFloat},
}

// Load implements iss.ValueLoader.
func (r *Offer) Load(v []iss.Value, c iss.Columns) error {
	if !OfferSchema.SubsetOf(c) {
		return errors.Reason("unexpected columns: %v", c)
	}
	if len(v) != len(c) {
		return errors.Reason("expected %d values, received %d: %v", len(c), len(v), v)
	}
	m := c.Index()
	var err error

	if r.Date, err = value2date(v[m["offerdate"]]); err != nil {
		return errors.Annotate(err, "offerdate should be a date string")
	}
	if r.Price, err = value2num(v[m["price"]]); err != nil {
		return errors.Annotate(err, "price should be a number")
	}
	if i, ok := m["offerdatestart"]; ok {
		if r.StartDate, err = value2date(v[i]); err != nil {
			return errors.Annotate(err, "offerdatestart should be a date string")
		}
	}
	if i, ok := m["offerdateend"]; ok {
		if r.EndDate, err = value2date(v[i]); err != nil {
			return errors.Annotate(err, "offerdateend should be a date string")
		}
	}
	if i, ok := m["offertype"]; ok {
		if r.OfferType, err = value2str(v[i]); err != nil {
			return errors.Annotate(err, "offertype should be a string")
		}
	}
	if i, ok := m["agent"]; ok {
		if r.Agent, err = value2str(v[i]); err != nil {
			return errors.Annotate(err, "agent should be a string")
		}
	}
	return nil
}
