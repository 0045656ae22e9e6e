package prediction

import (
	"errors"
	"strings"
	"time"

	"github.com/flightontime/flightontime/internal/features"
)

var (
	ErrNotFound = errors.New("prediction not found")
	// ErrScorer wraps every failure returned by the classifier.
	ErrScorer = errors.New("classifier failed")
)

// ValidationError carries every violation found in a request.
type ValidationError struct {
	Errors []features.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.String()
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

type Response struct {
	ID                 string            `json:"id,omitempty"`
	Atraso             bool              `json:"atraso"`
	Probabilidade      float64           `json:"probabilidade"`
	Status             string            `json:"status"`
	Mensagem           string            `json:"mensagem,omitempty"`
	FeaturesExplicadas map[string]string `json:"features_explicadas,omitempty"`
	LatenciaMS         float64           `json:"latencia_ms"`
	Cached             bool              `json:"cached,omitempty"`
}

// Record is one served prediction as kept in history.
type Record struct {
	ID             string    `json:"id"`
	Airline        string    `json:"companhia_aerea"`
	Origin         string    `json:"aeroporto_origem"`
	Destination    string    `json:"aeroporto_destino"`
	Departure      string    `json:"data_hora_partida"`
	DistanceKM     float64   `json:"distancia_km"`
	HourBucket     string    `json:"hora_dia"`
	DayOfWeek      int       `json:"dia_semana"` // 0=Monday
	Delayed        bool      `json:"atraso"`
	Probability    float64   `json:"probabilidade"`
	Features       []float64 `json:"features"`
	EncoderVersion string    `json:"encoder_version,omitempty"`
	CreatedAt      time.Time `json:"data_consulta"`
}

type ListOpts struct {
	Airline string
	Delayed *bool
	Limit   int
	Offset  int
}

// StatusReport summarizes predictions served since Since.
type StatusReport struct {
	Since          time.Time `json:"desde"`
	Total          int64     `json:"total"`
	Delayed        int64     `json:"atrasados"`
	DelayedPercent float64   `json:"percentual_atrasados"`
}

// Debug is the full encoding of a request, by name.
type Debug struct {
	Features      []float64          `json:"features"`
	Layout        []string           `json:"layout"`
	FeaturesNamed map[string]float64 `json:"features_named"`
	Parts         features.Parts     `json:"parts"`
	Input         features.Request   `json:"input_data"`
	AirlineLookup string             `json:"airline_encoded"`
	Route         string             `json:"airport_pair"`
	Explained     map[string]string  `json:"features_explicadas"`
}
