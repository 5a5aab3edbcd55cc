// trade/csv.go
package trade

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Columns are the recognized header names of a trades CSV.
var Columns = []string{"date", "symbol", "side", "entry_price", "exit_price", "shares", "stop_price"}

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("trades csv: missing header row")

// LoadCSV reads trades from the CSV file at path.
func LoadCSV(path string) ([]Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trades: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV decodes trades from r. The first row is the header; columns are
// matched by exact name and unknown columns are ignored. Empty cells and NaN
// leave the field unset; infinite values are rejected.
func ReadCSV(r io.Reader) ([]Trade, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("trades csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}

	trades := []Trade{}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("trades csv row %d: %w", row, err)
		}

		cell := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		t := Trade{
			Date:    cell("date"),
			Symbol:  cell("symbol"),
			RawSide: cell("side"),
		}
		for _, nf := range []struct {
			col string
			dst **float64
		}{
			{"entry_price", &t.EntryPrice},
			{"exit_price", &t.ExitPrice},
			{"shares", &t.Shares},
			{"stop_price", &t.StopPrice},
		} {
			v, err := parseNumber(cell(nf.col))
			if err != nil {
				return nil, fmt.Errorf("trades csv row %d column %s: %w", row, nf.col, err)
			}
			*nf.dst = v
		}
		trades = append(trades, t)
	}

	return trades, nil
}

func parseNumber(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	if math.IsInf(v, 0) {
		return nil, fmt.Errorf("non-finite value %q", s)
	}
	return &v, nil
}
