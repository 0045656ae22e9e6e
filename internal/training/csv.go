// Package training builds encoder tables from historical flight data.
package training

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/flightontime/flightontime/internal/features"
)

const kmPerMile = 1.609344

// Columns names the CSV headers to read. The defaults are the BTS on-time
// performance headers.
type Columns struct {
	Airline     string
	Origin      string
	Destination string
	Distance    string
	// DistanceInMiles converts the distance column to km while reading.
	DistanceInMiles bool
}

var DefaultColumns = Columns{
	Airline:     "OP_CARRIER",
	Origin:      "ORIGIN",
	Destination: "DEST",
	Distance:    "DISTANCE",
}

type Stats struct {
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
}

// ReadCSV loads records from r. Rows missing a carrier, an airport or a
// distance are skipped and counted.
func ReadCSV(r io.Reader, cols Columns) ([]features.Record, Stats, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.WithTypes(map[string]series.Type{
			cols.Airline:     series.String,
			cols.Origin:      series.String,
			cols.Destination: series.String,
			cols.Distance:    series.Float,
		}),
	)
	if df.Err != nil {
		return nil, Stats{}, fmt.Errorf("read csv: %w", df.Err)
	}

	have := map[string]bool{}
	for _, n := range df.Names() {
		have[n] = true
	}
	for _, c := range []string{cols.Airline, cols.Origin, cols.Destination, cols.Distance} {
		if !have[c] {
			return nil, Stats{}, fmt.Errorf("read csv: missing column %q", c)
		}
	}

	df = df.Select([]string{cols.Airline, cols.Origin, cols.Destination, cols.Distance})
	if df.Err != nil {
		return nil, Stats{}, fmt.Errorf("select columns: %w", df.Err)
	}

	airline := df.Col(cols.Airline)
	origin := df.Col(cols.Origin)
	dest := df.Col(cols.Destination)
	dist := df.Col(cols.Distance)

	airNA, origNA, destNA := airline.IsNaN(), origin.IsNaN(), dest.IsNaN()
	a, o, d, km := airline.Records(), origin.Records(), dest.Records(), dist.Float()

	st := Stats{Rows: df.Nrow()}
	out := make([]features.Record, 0, st.Rows)
	for i := 0; i < st.Rows; i++ {
		if airNA[i] || origNA[i] || destNA[i] || math.IsNaN(km[i]) ||
			strings.TrimSpace(a[i]) == "" || strings.TrimSpace(o[i]) == "" || strings.TrimSpace(d[i]) == "" {
			st.Skipped++
			continue
		}
		v := km[i]
		if cols.DistanceInMiles {
			v *= kmPerMile
		}
		out = append(out, features.Record{Airline: a[i], Origin: o[i], Destination: d[i], DistanceKM: v})
	}
	return out, st, nil
}

// FitCSV reads r and fits a table stamped with version and now.
func FitCSV(r io.Reader, cols Columns, version string, now time.Time) (*features.Table, Stats, error) {
	recs, st, err := ReadCSV(r, cols)
	if err != nil {
		return nil, st, err
	}
	tbl, err := features.Fit(recs)
	if err != nil {
		return nil, st, err
	}
	tbl.Metadata = features.Metadata{
		CreatedAt: now.Format("2006-01-02T15:04:05"),
		Version:   version,
	}
	return tbl, st, nil
}
