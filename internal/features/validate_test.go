package features

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() Request {
	return Request{
		Airline:     "AA",
		Origin:      "JFK",
		Destination: "LAX",
		Departure:   "2024-01-15T14:30:00",
		DistanceKM:  json.RawMessage(`3980`),
	}
}

func fields(r Result) []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Field)
	}
	return out
}

func TestValidate_Accepts(t *testing.T) {
	res := Validator{}.Validate(validRequest())
	require.True(t, res.Valid, res.Messages())
	assert.Empty(t, res.Errors)
	assert.Equal(t, "AA", res.Query.Airline)
	assert.Equal(t, 3980.0, res.Query.DistanceKM)
	assert.Equal(t, 14, res.Query.Departure.Hour())
}

func TestValidate_NormalizesCodes(t *testing.T) {
	req := validRequest()
	req.Airline, req.Origin, req.Destination = " g3 ", "gru", "sdu"
	res := Validator{}.Validate(req)
	require.True(t, res.Valid, res.Messages())
	assert.Equal(t, "G3", res.Query.Airline)
	assert.Equal(t, "GRU", res.Query.Origin)
	assert.Equal(t, "SDU", res.Query.Destination)
}

func TestValidate_ThreeLetterAirline(t *testing.T) {
	req := validRequest()
	req.Airline = "TAM"
	assert.True(t, Validator{}.Validate(req).Valid)
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*Request)
		field string
	}{
		{"airline length 1", func(r *Request) { r.Airline = "A" }, "companhia_aerea"},
		{"airline length 4", func(r *Request) { r.Airline = "AAAA" }, "companhia_aerea"},
		{"origin length 2", func(r *Request) { r.Origin = "JF" }, "aeroporto_origem"},
		{"origin length 4", func(r *Request) { r.Origin = "JFKX" }, "aeroporto_origem"},
		{"destination length 2", func(r *Request) { r.Destination = "LA" }, "aeroporto_destino"},
		{"destination length 4", func(r *Request) { r.Destination = "LAXX" }, "aeroporto_destino"},
		{"negative distance", func(r *Request) { r.DistanceKM = json.RawMessage(`-1`) }, "distancia_km"},
		{"distance above max", func(r *Request) { r.DistanceKM = json.RawMessage(`5001`) }, "distancia_km"},
		{"distance as string", func(r *Request) { r.DistanceKM = json.RawMessage(`"3980"`) }, "distancia_km"},
		{"distance missing", func(r *Request) { r.DistanceKM = nil }, "distancia_km"},
		{"distance null", func(r *Request) { r.DistanceKM = json.RawMessage(`null`) }, "distancia_km"},
		{"date dd/mm/yyyy", func(r *Request) { r.Departure = "15/01/2024" }, "data_hora_partida"},
		{"date missing", func(r *Request) { r.Departure = "" }, "data_hora_partida"},
		{"date nonsense", func(r *Request) { r.Departure = "tomorrow" }, "data_hora_partida"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mut(&req)
			res := Validator{}.Validate(req)
			assert.False(t, res.Valid)
			assert.Equal(t, []string{tc.field}, fields(res))
		})
	}
}

func TestValidate_ConfiguredMax(t *testing.T) {
	req := validRequest()
	req.DistanceKM = json.RawMessage(`9000`)
	assert.False(t, Validator{}.Validate(req).Valid)
	assert.True(t, Validator{MaxDistanceKM: 12000}.Validate(req).Valid)
}

func TestValidate_ReportsEveryViolationInOrder(t *testing.T) {
	res := Validator{}.Validate(Request{Airline: "A", Origin: "JF", Destination: "LAXX",
		Departure: "15/01/2024", DistanceKM: json.RawMessage(`-5`)})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{
		"companhia_aerea", "aeroporto_origem", "aeroporto_destino", "data_hora_partida", "distancia_km",
	}, fields(res))
	assert.Len(t, res.Messages(), 5)
}

func TestParseTimestamp_Layouts(t *testing.T) {
	for _, s := range []string{
		"2024-01-15T14:30:00",
		"2024-01-15T14:30",
		"2024-01-15 14:30:00",
		"2024-01-15T14:30:00Z",
		"2024-01-15T14:30:00-03:00",
		"2024-01-15T14:30:00.123456",
	} {
		ts, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		assert.Equal(t, 14, ts.Hour(), s)
		assert.Equal(t, 30, ts.Minute(), s)
	}
	_, err := ParseTimestamp("15/01/2024")
	assert.Error(t, err)
}
