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

// The moex-index app prints the daily history of a MOEX index, e.g. IMOEX or
// RGBITR, as a text or CSV table, optionally with summary statistics of the
// daily log returns.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/moexdata/dates"
	"github.com/stockparfait/moexdata/iss"
	"github.com/stockparfait/moexdata/iss/history"
	"github.com/stockparfait/moexdata/table"
	"gonum.org/v1/gonum/stat"

	toml "github.com/pelletier/go-toml/v2"
)

type Flags struct {
	Index    string // index ticker, e.g. IMOEX (required)
	From     string // start date, YYYY-MM-DD
	Till     string // end date, YYYY-MM-DD
	Config   string // path to config.toml
	Env      string // path to a .env file with credentials
	CSV      bool   // dump CSV format; default: text
	Stats    bool   // print summary stats of daily log returns
	LogLevel logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("moex-index", flag.ExitOnError)
	fs.StringVar(&flags.Index, "index", "", "index ticker, e.g. IMOEX (required)")
	fs.StringVar(&flags.From, "from", "", "start date as YYYY-MM-DD")
	fs.StringVar(&flags.Till, "till", "", "end date as YYYY-MM-DD")
	fs.StringVar(&flags.Config, "config", "", "path to config.toml")
	fs.StringVar(&flags.Env, "env", "", "path to a .env file with credentials")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	fs.BoolVar(&flags.Stats, "stats", false,
		"print summary statistics of daily log returns")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Index == "" {
		return nil, errors.Reason("missing required -index argument")
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

// issConfig assembles the client config from the TOML config and the
// environment. MOEX_USERNAME / MOEX_PASSWORD env variables, possibly loaded
// from a .env file, override the config file credentials.
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

func candlesTable(candles []history.Candle) *table.Table {
	num := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	tbl := table.New("Date", "Open", "High", "Low", "Close", "Value")
	for _, c := range candles {
		tbl.Append([]string{c.Date.String(), num(c.Open), num(c.High),
			num(c.Low), num(c.Close), num(c.Value)})
	}
	return tbl
}

// logReturns computes the daily log returns over the close prices, skipping
// non-positive closes.
func logReturns(candles []history.Candle) []float64 {
	var res []float64
	prev := 0.0
	for _, c := range candles {
		if c.Close > 0.0 {
			if prev > 0.0 {
				res = append(res, math.Log(c.Close/prev))
			}
			prev = c.Close
		}
	}
	return res
}

func printStats(w io.Writer, candles []history.Candle) {
	rets := logReturns(candles)
	fmt.Fprintf(w, "days: %d\n", len(rets))
	if len(rets) == 0 {
		return
	}
	mean := stat.Mean(rets, nil)
	sigma := stat.StdDev(rets, nil)
	fmt.Fprintf(w, "mean daily log return: %.6f\n", mean)
	fmt.Fprintf(w, "daily volatility: %.6f\n", sigma)
	// 252 trading days per year.
	fmt.Fprintf(w, "annualized return: %.4f\n", mean*252.0)
	fmt.Fprintf(w, "annualized volatility: %.4f\n", sigma*math.Sqrt(252.0))
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

	from, err := parseDate(flags.From)
	if err != nil {
		return errors.Annotate(err, "invalid -from date")
	}
	till, err := parseDate(flags.Till)
	if err != nil {
		return errors.Annotate(err, "invalid -till date")
	}
	candles, err := history.IndexCandles(ctx, flags.Index, from, till)
	if err != nil {
		return errors.Annotate(err, "failed to fetch %s history", flags.Index)
	}
	logging.Infof(ctx, "fetched %d days of %s", len(candles), flags.Index)

	tbl := candlesTable(candles)
	if flags.CSV {
		if err := tbl.WriteCSV(w, table.Params{}); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
	} else {
		if err := tbl.WriteText(w, table.Params{}); err != nil {
			return errors.Annotate(err, "failed to print text")
		}
	}
	if flags.Stats {
		printStats(w, candles)
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
