// Package features turns a flight query into the fixed-order numeric vector
// consumed by the delay classifier.
package features

import "time"

// Unknown is the id used for airline codes and routes that were not seen
// when the table was fitted.
const Unknown = -1

// Epsilon keeps the distance normalization finite when min == max.
const Epsilon = 1e-10

// DefaultMaxDistanceKM is the upper bound validation applies when none is configured.
const DefaultMaxDistanceKM = 5000.0

type DistanceRange struct {
	Min float64 `json:"min_distance" msgpack:"min_distance"`
	Max float64 `json:"max_distance" msgpack:"max_distance"`
}

// Metadata is informational. CreatedAt is kept as written because offline
// tooling emits ISO timestamps without a zone.
type Metadata struct {
	CreatedAt string `json:"created_at,omitempty" msgpack:"created_at"`
	Version   string `json:"version,omitempty" msgpack:"version"`
}

// Table holds the lookups learned by Fit. It is never mutated after it is
// loaded; a reload builds a new Table and swaps it in through a Holder.
type Table struct {
	Airlines map[string]int `json:"airline_encoder" msgpack:"airline_encoder"`
	Routes   map[string]int `json:"route_encoder" msgpack:"route_encoder"`
	Distance DistanceRange  `json:"distance_stats" msgpack:"distance_stats"`
	Metadata Metadata       `json:"metadata" msgpack:"metadata"`
}

// FlightQuery is a validated request.
type FlightQuery struct {
	Airline     string
	Origin      string
	Destination string
	Departure   time.Time
	DistanceKM  float64
}

// Record is one historical flight used to fit a Table.
type Record struct {
	Airline     string
	Origin      string
	Destination string
	DistanceKM  float64
}

type HourBucket int

const (
	Madrugada HourBucket = iota // [0,6)
	Manha                       // [6,12)
	Tarde                       // [12,18)
	Noite                       // [18,24)
)

func (b HourBucket) String() string {
	switch b {
	case Madrugada:
		return "madrugada"
	case Manha:
		return "manhã"
	case Tarde:
		return "tarde"
	case Noite:
		return "noite"
	default:
		return "unknown"
	}
}

// BucketOf classifies an hour of day (0-23).
func BucketOf(hour int) HourBucket {
	switch {
	case hour < 6:
		return Madrugada
	case hour < 12:
		return Manha
	case hour < 18:
		return Tarde
	default:
		return Noite
	}
}

// Parts are all the values Encode derives, by name. Vector.Values is the
// subset selected by the layout.
type Parts struct {
	AirlineID    int        `json:"airline_id"`
	RouteID      int        `json:"route_id"`
	Route        string     `json:"route"`
	Hour         int        `json:"hour_of_day"`
	Bucket       HourBucket `json:"hour_bucket"`
	DayOfWeek    int        `json:"day_of_week"` // 0=Monday … 6=Sunday
	Weekend      int        `json:"is_weekend"`
	DistanceNorm float64    `json:"distance_norm"`
	Month        int        `json:"month"`
	Shift        int        `json:"shift"`

	UnknownAirline bool `json:"unknown_airline"`
	UnknownRoute   bool `json:"unknown_route"`
}

// Vector is the classifier input.
type Vector struct {
	Values []float64
	Layout Layout
	Parts  Parts
}
