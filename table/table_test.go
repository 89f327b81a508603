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

package table

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTable(t *testing.T) {
	t.Parallel()

	Convey("Table works", t, func() {
		tbl := New("SECID", "CLOSE")
		tbl.Append([]string{"IMOEX", "3210.5"}, []string{"RGBITR", "612.33"})

		Convey("WriteCSV", func() {
			var buf bytes.Buffer
			So(tbl.WriteCSV(&buf, Params{}), ShouldBeNil)
			So(buf.String(), ShouldEqual, "SECID,CLOSE\nIMOEX,3210.5\nRGBITR,612.33\n")
		})

		Convey("WriteCSV without header", func() {
			var buf bytes.Buffer
			So(tbl.WriteCSV(&buf, Params{NoHeader: true}), ShouldBeNil)
			So(buf.String(), ShouldEqual, "IMOEX,3210.5\nRGBITR,612.33\n")
		})

		Convey("WriteCSV with row limit", func() {
			var buf bytes.Buffer
			So(tbl.WriteCSV(&buf, Params{Rows: 1}), ShouldBeNil)
			So(buf.String(), ShouldEqual, "SECID,CLOSE\nIMOEX,3210.5\n")
		})

		Convey("WriteText aligns columns", func() {
			var buf bytes.Buffer
			So(tbl.WriteText(&buf, Params{}), ShouldBeNil)
			So(buf.String(), ShouldEqual, ` SECID |  CLOSE
------ | ------
 IMOEX | 3210.5
RGBITR | 612.33
`)
		})

		Convey("WriteText trims long cells", func() {
			tbl2 := New("NAME")
			tbl2.Append([]string{"Government bond total return index"})
			var buf bytes.Buffer
			So(tbl2.WriteText(&buf, Params{MaxColWidth: 10}), ShouldBeNil)
			So(buf.String(), ShouldEqual, `      NAME
----------
Governme..
`)
		})

		Convey("WriteText rejects bad MaxColWidth", func() {
			var buf bytes.Buffer
			So(tbl.WriteText(&buf, Params{MaxColWidth: 2}), ShouldNotBeNil)
		})

		Convey("WriteText rejects ragged rows", func() {
			tbl2 := New("A", "B")
			tbl2.Append([]string{"only one"})
			var buf bytes.Buffer
			So(tbl2.WriteText(&buf, Params{}), ShouldNotBeNil)
		})
	})
}
