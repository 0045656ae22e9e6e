package features

import (
	"fmt"
	"strings"
)

type Field string

const (
	FieldAirlineID    Field = "airline_id"
	FieldRouteID      Field = "route_id"
	FieldHourOfDay    Field = "hour_of_day"
	FieldHourBucket   Field = "hour_bucket"
	FieldDayOfWeek    Field = "day_of_week"
	FieldIsWeekend    Field = "is_weekend"
	FieldDistanceNorm Field = "distance_norm"
	FieldMonth        Field = "month"
	FieldShift        Field = "shift"
)

var knownFields = map[Field]bool{
	FieldAirlineID:    true,
	FieldRouteID:      true,
	FieldHourOfDay:    true,
	FieldHourBucket:   true,
	FieldDayOfWeek:    true,
	FieldIsWeekend:    true,
	FieldDistanceNorm: true,
	FieldMonth:        true,
	FieldShift:        true,
}

// Layout pins each vector position to a field. It has to match whatever the
// deployed classifier was trained on.
type Layout []Field

// DefaultLayout mirrors the field order of the offline transform that produced
// the training set.
var DefaultLayout = Layout{
	FieldAirlineID,
	FieldRouteID,
	FieldHourOfDay,
	FieldHourBucket,
	FieldDayOfWeek,
	FieldDistanceNorm,
	FieldIsWeekend,
}

// ParseLayout parses a comma separated field list.
func ParseLayout(s string) (Layout, error) {
	var l Layout
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			l = append(l, Field(strings.ToLower(p)))
		}
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l Layout) Validate() error {
	if len(l) == 0 {
		return &ConfigError{Reason: "feature layout is empty"}
	}
	seen := make(map[Field]bool, len(l))
	for _, f := range l {
		if !knownFields[f] {
			return &ConfigError{Reason: fmt.Sprintf("unknown feature %q in layout", f)}
		}
		if seen[f] {
			return &ConfigError{Reason: fmt.Sprintf("feature %q listed twice in layout", f)}
		}
		seen[f] = true
	}
	return nil
}

func (l Layout) Strings() []string {
	out := make([]string, len(l))
	for i, f := range l {
		out[i] = string(f)
	}
	return out
}

func (l Layout) String() string { return strings.Join(l.Strings(), ",") }

func (p Parts) value(f Field) float64 {
	switch f {
	case FieldAirlineID:
		return float64(p.AirlineID)
	case FieldRouteID:
		return float64(p.RouteID)
	case FieldHourOfDay:
		return float64(p.Hour)
	case FieldHourBucket:
		return float64(p.Bucket)
	case FieldDayOfWeek:
		return float64(p.DayOfWeek)
	case FieldIsWeekend:
		return float64(p.Weekend)
	case FieldDistanceNorm:
		return p.DistanceNorm
	case FieldMonth:
		return float64(p.Month)
	case FieldShift:
		return float64(p.Shift)
	}
	return 0
}
