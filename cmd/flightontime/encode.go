package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flightontime/flightontime/internal/features"
)

// errViolations makes encode exit 1 after the violations were printed.
var errViolations = errors.New("request has violations")

var (
	violationColor = color.New(color.FgRed, color.Bold)
	nameColor      = color.New(color.FgCyan)
	unknownColor   = color.New(color.FgYellow)
)

func newEncodeCmd() *cobra.Command {
	var (
		tablePath   string
		layoutCSV   string
		maxDistance float64
	)
	cmd := &cobra.Command{
		Use:   "encode --table encoder.json '<request json>'",
		Short: "Validate a request and print its feature vector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd.OutOrStdout(), tablePath, layoutCSV, maxDistance, args[0])
		},
	}
	cmd.Flags().StringVar(&tablePath, "table", "", "encoder table file (.json or .msgpack)")
	cmd.Flags().StringVar(&layoutCSV, "layout", features.DefaultLayout.String(), "comma separated feature layout")
	cmd.Flags().Float64Var(&maxDistance, "max-distance", features.DefaultMaxDistanceKM, "largest accepted distance in km")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func runEncode(w io.Writer, tablePath, layoutCSV string, maxDistance float64, body string) error {
	layout, err := features.ParseLayout(layoutCSV)
	if err != nil {
		return err
	}
	f, err := os.Open(tablePath)
	if err != nil {
		return err
	}
	defer f.Close()
	tbl, err := features.ReadTable(f, features.FormatFor(tablePath))
	if err != nil {
		return err
	}
	enc, err := features.NewEncoder(tbl, layout)
	if err != nil {
		return err
	}

	var req features.Request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return fmt.Errorf("request json: %w", err)
	}
	res := features.Validator{MaxDistanceKM: maxDistance}.Validate(req)
	if !res.Valid {
		for _, e := range res.Errors {
			violationColor.Fprintf(w, "✗ %s", e.Field)
			fmt.Fprintf(w, ": %s\n", e.Message)
		}
		return errViolations
	}

	vec := enc.Encode(res.Query)
	for i, field := range vec.Layout {
		nameColor.Fprintf(w, "%-14s", field)
		fmt.Fprintf(w, " %g\n", vec.Values[i])
	}
	if vec.Parts.UnknownAirline {
		unknownColor.Fprintf(w, "unknown airline %s\n", res.Query.Airline)
	}
	if vec.Parts.UnknownRoute {
		unknownColor.Fprintf(w, "unknown route %s\n", vec.Parts.Route)
	}
	fmt.Fprintf(w, "[%s]\n", joinFloats(vec.Values))
	return nil
}

func joinFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%g", x)
	}
	return strings.Join(parts, ", ")
}
