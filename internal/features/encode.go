package features

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

var encoderSeq atomic.Uint64

// Encoder pairs a table with the layout the classifier expects.
type Encoder struct {
	table  *Table
	layout Layout
	gen    uint64
}

func NewEncoder(t *Table, layout Layout) (*Encoder, error) {
	if t == nil {
		return nil, &ConfigError{Reason: "encoder table is nil"}
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	l := make(Layout, len(layout))
	copy(l, layout)
	return &Encoder{table: t, layout: l, gen: encoderSeq.Add(1)}, nil
}

func (e *Encoder) Table() *Table { return e.table }
func (e *Encoder) Layout() Layout { return e.layout }
func (e *Encoder) NumFeatures() int { return len(e.layout) }

// Generation is unique per Encoder built in this process.
func (e *Encoder) Generation() uint64 { return e.gen }

func (e *Encoder) Encode(q FlightQuery) Vector { return Encode(q, e.table, e.layout) }

// RouteKey builds the lookup key used for route ids.
func RouteKey(origin, destination string) string {
	return fmt.Sprintf("%s-%s", normCode(origin), normCode(destination))
}

// Weekday returns the day index with Monday as 0 and Sunday as 6.
func Weekday(t time.Time) int { return (int(t.Weekday()) + 6) % 7 }

// NormalizeDistance rescales km into [0,1] against the fitted range.
func NormalizeDistance(km float64, r DistanceRange) float64 {
	v := (km - r.Min) / (r.Max - r.Min + Epsilon)
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Encode maps q onto the fields named by layout. Unknown airlines and routes
// take the Unknown id; Encode never fails.
func Encode(q FlightQuery, t *Table, layout Layout) Vector {
	var p Parts

	if id, ok := t.Airlines[normCode(q.Airline)]; ok {
		p.AirlineID = id
	} else {
		p.AirlineID, p.UnknownAirline = Unknown, true
	}

	p.Route = RouteKey(q.Origin, q.Destination)
	if id, ok := t.Routes[p.Route]; ok {
		p.RouteID = id
	} else {
		p.RouteID, p.UnknownRoute = Unknown, true
	}

	p.Hour = q.Departure.Hour()
	p.Bucket = BucketOf(p.Hour)
	p.DayOfWeek = Weekday(q.Departure)
	if p.DayOfWeek >= 5 {
		p.Weekend = 1
	}
	p.DistanceNorm = NormalizeDistance(q.DistanceKM, t.Distance)
	p.Month = int(q.Departure.Month())
	if p.Hour >= 12 {
		p.Shift = 1
	}

	values := make([]float64, len(layout))
	for i, f := range layout {
		values[i] = p.value(f)
	}
	return Vector{Values: values, Layout: layout, Parts: p}
}

func normCode(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
