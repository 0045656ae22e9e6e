package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Request is the wire shape of a prediction query. Distance stays raw so a
// non-numeric value can be reported instead of failing the whole decode.
type Request struct {
	Airline     string          `json:"companhia_aerea"`
	Origin      string          `json:"aeroporto_origem"`
	Destination string          `json:"aeroporto_destino"`
	Departure   string          `json:"data_hora_partida"`
	DistanceKM  json.RawMessage `json:"distancia_km"`
}

type FieldError struct {
	Field   string `json:"campo"`
	Message string `json:"mensagem"`
}

func (e FieldError) String() string { return e.Field + ": " + e.Message }

// Result is the outcome of Validate. Query is only meaningful when Valid.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
	Query  FlightQuery  `json:"-"`
}

// Messages returns the violations as human-readable lines, in field order.
func (r Result) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.String()
	}
	return out
}

// Validator checks request shape and ranges. The zero value uses DefaultMaxDistanceKM.
type Validator struct {
	MaxDistanceKM float64
}

// timestamp layouts accepted for data_hora_partida, all ISO 8601 flavours.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an ISO 8601 date-time. Wall clock fields are kept
// as written, zone offsets are not converted.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q", s)
}

func (v Validator) maxDistance() float64 {
	if v.MaxDistanceKM > 0 {
		return v.MaxDistanceKM
	}
	return DefaultMaxDistanceKM
}

func (v Validator) Validate(req Request) Result {
	var (
		errs []FieldError
		q    FlightQuery
	)
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	airline := strings.TrimSpace(req.Airline)
	if n := len([]rune(airline)); n < 2 || n > 3 {
		add("companhia_aerea", "must be a 2 or 3 character airline code")
	}
	q.Airline = strings.ToUpper(airline)

	origin := strings.TrimSpace(req.Origin)
	if len([]rune(origin)) != 3 {
		add("aeroporto_origem", "must be a 3 character airport code")
	}
	q.Origin = strings.ToUpper(origin)

	dest := strings.TrimSpace(req.Destination)
	if len([]rune(dest)) != 3 {
		add("aeroporto_destino", "must be a 3 character airport code")
	}
	q.Destination = strings.ToUpper(dest)

	if strings.TrimSpace(req.Departure) == "" {
		add("data_hora_partida", "is required")
	} else if t, err := ParseTimestamp(req.Departure); err != nil {
		add("data_hora_partida", "must be an ISO 8601 date-time, got %q", req.Departure)
	} else {
		q.Departure = t
	}

	limit := v.maxDistance()
	switch d, ok, present := parseNumber(req.DistanceKM); {
	case !present:
		add("distancia_km", "is required")
	case !ok:
		add("distancia_km", "must be a number")
	case d < 0 || d > limit:
		add("distancia_km", "must be between 0 and %g", limit)
	default:
		q.DistanceKM = d
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Query: q}
}

func parseNumber(raw json.RawMessage) (v float64, ok, present bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, false
	}
	var x any
	if err := json.Unmarshal(raw, &x); err != nil {
		return 0, false, true
	}
	f, isNum := x.(float64)
	return f, isNum, true
}
