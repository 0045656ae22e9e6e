package prediction

import (
	"fmt"
	"strconv"

	"github.com/flightontime/flightontime/internal/classifier"
	"github.com/flightontime/flightontime/internal/features"
)

// weekday names, Monday first to match features.Weekday
var diasDaSemana = [7]string{"Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado", "Domingo"}

func message(s classifier.Score) string {
	status := "PONTUAL"
	if s.Delayed {
		status = "COM ATRASO"
	}
	return fmt.Sprintf("Voo %s (%.1f%% de probabilidade)", status, s.Probability*100)
}

func explain(q features.FlightQuery, p features.Parts) map[string]string {
	code := func(id int, unknown bool) string {
		if unknown {
			return "desconhecido"
		}
		return "código: " + strconv.Itoa(id)
	}
	weekend := "não"
	if p.Weekend == 1 {
		weekend = "sim"
	}
	turno := "Manhã"
	if p.Shift == 1 {
		turno = "Tarde/Noite"
	}
	return map[string]string{
		"companhia_aerea":   fmt.Sprintf("%s (%s)", q.Airline, code(p.AirlineID, p.UnknownAirline)),
		"rota_aerea":        fmt.Sprintf("%s (%s)", p.Route, code(p.RouteID, p.UnknownRoute)),
		"hora_do_dia":       fmt.Sprintf("%dh (%s)", p.Hour, p.Bucket),
		"turno_operacional": turno,
		"dia_da_semana":     diasDaSemana[p.DayOfWeek],
		"fim_de_semana":     weekend,
		"distancia":         fmt.Sprintf("%gkm (normalizado: %.3f)", q.DistanceKM, p.DistanceNorm),
		"mes":               strconv.Itoa(p.Month),
	}
}
