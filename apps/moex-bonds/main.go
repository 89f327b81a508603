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

// The moex-bonds app lists Russian domestic bonds and prints per-bond data by
// ISIN: instrument description, daily trading results, and the coupon,
// amortization and offer schedules.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/moexdata/dates"
	"github.com/stockparfait/moexdata/iss"
	"github.com/stockparfait/moexdata/iss/bonds"
	"github.com/stockparfait/moexdata/table"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	toml "github.com/pelletier/go-toml/v2"
)

var printKinds = []string{
	"description", "trading", "coupons", "amortizations", "offers"}

type Flags struct {
	ISINs    string // comma-separated ISINs
	Domestic bool   // list domestic bonds instead
	Print    string // which per-bond table to print
	From     string // start date for trading data, YYYY-MM-DD
	Till     string // end date for trading data, YYYY-MM-DD
	Config   string // path to config.toml
	Env      string // path to a .env file with credentials
	CSV      bool   // dump CSV format; default: text
	LogLevel logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("moex-bonds", flag.ExitOnError)
	fs.StringVar(&flags.ISINs, "isin", "", "comma-separated bond ISINs")
	fs.BoolVar(&flags.Domestic, "domestic", false,
		"list currently traded domestic bonds")
	fs.StringVar(&flags.Print, "print", "description",
		"per-bond table to print: "+strings.Join(printKinds, ", "))
	fs.StringVar(&flags.From, "from", "", "start date as YYYY-MM-DD")
	fs.StringVar(&flags.Till, "till", "", "end date as YYYY-MM-DD")
	fs.StringVar(&flags.Config, "config", "", "path to config.toml")
	fs.StringVar(&flags.Env, "env", "", "path to a .env file with credentials")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Domestic == (flags.ISINs != "") {
		return nil, errors.Reason("expected exactly one of -domestic or -isin")
	}
	if !slices.Contains(printKinds, flags.Print) {
		return nil, errors.Reason("-print must be one of: %s",
			strings.Join(printKinds, ", "))
	}
	return &flags, err
}

type Config struct {
	BaseURL    string `toml:"base_url"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	MaxRetries int    `toml:"max_retries"`
	PageSize   int    `toml:"page_size"`
}

func parseConfig(filePath string) (*Config, error) {
	var c Config
	if filePath == "" {
		return &c, nil
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	return &c, nil
}

func issConfig(c *Config, envFile string) (iss.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return iss.Config{}, errors.Annotate(err,
				"failed to load env file %s", envFile)
		}
	}
	config := iss.Config{
		BaseURL:    c.BaseURL,
		Username:   c.Username,
		Password:   c.Password,
		MaxRetries: c.MaxRetries,
		PageSize:   c.PageSize,
	}
	if u := os.Getenv("MOEX_USERNAME"); u != "" {
		config.Username = u
	}
	if p := os.Getenv("MOEX_PASSWORD"); p != "" {
		config.Password = p
	}
	return config, nil
}

func parseDate(s string) (dates.Date, error) {
	if s == "" {
		return dates.Date{}, nil
	}
	return dates.NewDateFromString(s)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func reportTable(r *bonds.Report, kind string) *table.Table {
	switch kind {
	case "trading":
		tbl := table.New("Date", "Open", "High", "Low", "Close", "Value")
		for _, c := range r.Trading {
			tbl.Append([]string{c.Date.String(), num(c.Open), num(c.High),
				num(c.Low), num(c.Close), num(c.Value)})
		}
		return tbl
	case "coupons":
		tbl := table.New("Date", "Period start", "Record date", "Face value",
			"Value", "Rate %")
		for _, c := range r.Coupons {
			tbl.Append([]string{c.Date.String(), c.StartDate.String(),
				c.RecordDate.String(), num(c.FaceValue), num(c.Value),
				num(c.ValuePercent)})
		}
		return tbl
	case "amortizations":
		tbl := table.New("Date", "Face value", "Value", "Percent")
		for _, a := range r.Amortizations {
			tbl.Append([]string{a.Date.String(), num(a.FaceValue), num(a.Value),
				num(a.ValuePercent)})
		}
		return tbl
	case "offers":
		tbl := table.New("Date", "Start", "End", "Price", "Type", "Agent")
		for _, o := range r.Offers {
			tbl.Append([]string{o.Date.String(), o.StartDate.String(),
				o.EndDate.String(), num(o.Price), o.OfferType, o.Agent})
		}
		return tbl
	default:
		tbl := table.New("Name", "Title", "Value")
		for _, d := range r.Description {
			tbl.Append([]string{d.Name, d.Title, d.Value})
		}
		return tbl
	}
}

func writeTable(w io.Writer, tbl *table.Table, csv bool) error {
	if csv {
		return tbl.WriteCSV(w, table.Params{})
	}
	return tbl.WriteText(w, table.Params{})
}

func domesticTable(ctx context.Context) (*table.Table, error) {
	found, err := bonds.FindDomestic(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "failed to list domestic bonds")
	}
	tbl := table.New("SecID", "Board", "Name", "ISIN", "Face value")
	for _, s := range found {
		tbl.Append([]string{s.SecID, s.BoardID, s.ShortName, s.ISIN,
			num(s.FaceValue)})
	}
	return tbl, nil
}

func run(ctx context.Context, flags *Flags, w io.Writer) error {
	c, err := parseConfig(flags.Config)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	config, err := issConfig(c, flags.Env)
	if err != nil {
		return errors.Annotate(err, "failed to configure the client")
	}
	ctx = iss.UseClient(ctx, config)

	if flags.Domestic {
		tbl, err := domesticTable(ctx)
		if err != nil {
			return err
		}
		return writeTable(w, tbl, flags.CSV)
	}

	from, err := parseDate(flags.From)
	if err != nil {
		return errors.Annotate(err, "invalid -from date")
	}
	till, err := parseDate(flags.Till)
	if err != nil {
		return errors.Annotate(err, "invalid -till date")
	}
	isins := strings.Split(flags.ISINs, ",")
	reports, err := bonds.BatchReports(ctx, isins, from, till)
	if err != nil {
		return errors.Annotate(err, "failed to fetch bond reports")
	}
	keys := maps.Keys(reports)
	slices.Sort(keys)
	for _, isin := range keys {
		r := reports[isin]
		fmt.Fprintf(w, "%s: %s on %s\n", isin, r.Security.SecID, r.Security.BoardID)
		if err := writeTable(w, reportTable(r, flags.Print), flags.CSV); err != nil {
			return errors.Annotate(err, "failed to print %s", isin)
		}
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := run(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
