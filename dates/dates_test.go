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

package dates

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDates(t *testing.T) {
	t.Parallel()

	Convey("Date works", t, func() {
		Convey("String formats as YYYY-MM-DD", func() {
			So(NewDate(2024, 3, 7).String(), ShouldEqual, "2024-03-07")
		})

		Convey("NewDateFromString", func() {
			d, err := NewDateFromString("2022-09-19")
			So(err, ShouldBeNil)
			So(d, ShouldResemble, NewDate(2022, 9, 19))

			d, err = NewDateFromString("2022-09-19T23:59:59")
			So(err, ShouldBeNil)
			So(d, ShouldResemble, NewDate(2022, 9, 19))

			d, err = NewDateFromString("0000-00-00")
			So(err, ShouldBeNil)
			So(d.IsZero(), ShouldBeTrue)

			_, err = NewDateFromString("19.09.2022")
			So(err, ShouldNotBeNil)
		})

		Convey("JSON round trip", func() {
			d := NewDate(2023, 12, 29)
			js, err := json.Marshal(d)
			So(err, ShouldBeNil)
			So(string(js), ShouldEqual, `"2023-12-29"`)

			var d2 Date
			So(json.Unmarshal(js, &d2), ShouldBeNil)
			So(d2, ShouldResemble, d)
		})

		Convey("comparisons", func() {
			d1 := NewDate(2024, 1, 31)
			d2 := NewDate(2024, 2, 1)
			So(d1.Before(d2), ShouldBeTrue)
			So(d2.After(d1), ShouldBeTrue)
			So(d1.Before(d1), ShouldBeFalse)
			So(d1.InRange(NewDate(2024, 1, 1), NewDate(2024, 12, 31)), ShouldBeTrue)
			So(d1.InRange(d2, Date{}), ShouldBeFalse)
			So(d1.InRange(Date{}, Date{}), ShouldBeTrue)
			So(Date{}.InRange(Date{}, Date{}), ShouldBeFalse)
		})

		Convey("MinDate and MaxDate skip zero values", func() {
			d1 := NewDate(2020, 5, 1)
			d2 := NewDate(2021, 5, 1)
			So(MinDate(d2, Date{}, d1), ShouldResemble, d1)
			So(MaxDate(d1, d2, Date{}), ShouldResemble, d2)
			So(MinDate(), ShouldResemble, Date{})
		})

		Convey("DateInMoscow", func() {
			// 23:30 UTC on Dec 31 is already Jan 1 in Moscow (UTC+3).
			now := time.Date(2023, 12, 31, 23, 30, 0, 0, time.UTC)
			So(DateInMoscow(now), ShouldResemble, NewDate(2024, 1, 1))
		})
	})

	Convey("Time works", t, func() {
		tm := NewTime(2024, 3, 7, 18, 45, 0)
		So(tm.String(), ShouldEqual, "2024-03-07 18:45:00")

		js, err := json.Marshal(tm)
		So(err, ShouldBeNil)
		So(string(js), ShouldEqual, `"2024-03-07 18:45:00"`)

		var tm2 Time
		So(json.Unmarshal([]byte(`"2024-03-07 18:45:00"`), &tm2), ShouldBeNil)
		So(tm2.String(), ShouldEqual, tm.String())

		So(json.Unmarshal([]byte(`"not a time"`), &tm2), ShouldNotBeNil)
	})
}
