package features

import (
	"errors"
	"math"
	"sort"
)

var ErrNoRecords = errors.New("no historical records to fit")

// Fit learns a Table from historical flights. Ids are ordinals over the
// byte-wise sorted distinct values, so refitting the same data, in any order,
// reproduces the same ids.
func Fit(records []Record) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	airlines := map[string]struct{}{}
	routes := map[string]struct{}{}
	lo, hi := math.Inf(1), math.Inf(-1)

	for _, r := range records {
		if a := normCode(r.Airline); a != "" {
			airlines[a] = struct{}{}
		}
		if normCode(r.Origin) != "" && normCode(r.Destination) != "" {
			routes[RouteKey(r.Origin, r.Destination)] = struct{}{}
		}
		if math.IsNaN(r.DistanceKM) || math.IsInf(r.DistanceKM, 0) {
			continue
		}
		lo = math.Min(lo, r.DistanceKM)
		hi = math.Max(hi, r.DistanceKM)
	}
	if lo > hi {
		lo, hi = 0, 0
	}

	return &Table{
		Airlines: ordinals(airlines),
		Routes:   ordinals(routes),
		Distance: DistanceRange{Min: lo, Max: hi},
	}, nil
}

func ordinals(set map[string]struct{}) map[string]int {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]int, len(keys))
	for i, k := range keys {
		out[k] = i
	}
	return out
}
