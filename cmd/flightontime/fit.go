package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flightontime/flightontime/internal/config"
	"github.com/flightontime/flightontime/internal/db"
	"github.com/flightontime/flightontime/internal/features"
	"github.com/flightontime/flightontime/internal/storage"
	syncx "github.com/flightontime/flightontime/internal/sync"
	"github.com/flightontime/flightontime/internal/training"
)

type fitOptions struct {
	csv       string
	out       string
	version   string
	miles     bool
	noEvent   bool
	cols      training.Columns
	artifacts string
}

func newFitCmd() *cobra.Command {
	o := fitOptions{cols: training.DefaultColumns}
	cmd := &cobra.Command{
		Use:   "fit --csv data.csv",
		Short: "Build an encoder table from historical flights",
		Long: "Read a flights CSV and write the airline and route ordinals plus the distance range\n" +
			"to the artifact store. The output format follows the key extension (.json or .msgpack).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFit(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.csv, "csv", "", "flights CSV file (required)")
	f.StringVar(&o.out, "out", "", "artifact key for the table (default: encoder_key from config)")
	f.StringVar(&o.version, "version", "1.0.0", "version stamped into the table metadata")
	f.StringVar(&o.artifacts, "artifacts", "", "artifact directory (default: artifacts_dir from config)")
	f.BoolVar(&o.miles, "miles", false, "distance column is in miles")
	f.BoolVar(&o.noEvent, "no-event", false, "do not append an EncoderFitted event to the database")
	f.StringVar(&o.cols.Airline, "airline-col", o.cols.Airline, "airline column")
	f.StringVar(&o.cols.Origin, "origin-col", o.cols.Origin, "origin airport column")
	f.StringVar(&o.cols.Destination, "dest-col", o.cols.Destination, "destination airport column")
	f.StringVar(&o.cols.Distance, "distance-col", o.cols.Distance, "distance column")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func runFit(cmd *cobra.Command, o fitOptions) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if o.out == "" {
		o.out = cfg.EncoderKey
	}
	if o.artifacts == "" {
		o.artifacts = cfg.ArtifactsDir
	}
	o.cols.DistanceInMiles = o.miles

	in, err := os.Open(o.csv)
	if err != nil {
		return err
	}
	defer in.Close()

	tbl, st, err := training.FitCSV(in, o.cols, o.version, time.Now())
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tbl.Write(&buf, features.FormatFor(o.out)); err != nil {
		return err
	}
	bs, err := storage.NewFSStore(o.artifacts)
	if err != nil {
		return err
	}
	key, err := bs.Put(o.out, &buf)
	if err != nil {
		return err
	}
	loc, _ := bs.SignedURL(key)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rows: %d (skipped %d)\n", st.Rows, st.Skipped)
	fmt.Fprintf(out, "airlines: %d\n", len(tbl.Airlines))
	fmt.Fprintf(out, "routes: %d\n", len(tbl.Routes))
	fmt.Fprintf(out, "distance: %.1f..%.1f km\n", tbl.Distance.Min, tbl.Distance.Max)
	fmt.Fprintf(out, "wrote %s\n", loc)

	if o.noEvent {
		return nil
	}
	return recordFit(cmd.Context(), cfg, key, tbl)
}

func recordFit(ctx context.Context, cfg config.Config, key string, tbl *features.Table) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("record fit: %w", err)
	}
	defer dbh.Close()
	return syncx.NewEventRepo(dbh).Record(ctx, syncx.EventEncoderFitted, key, map[string]any{
		"version":  tbl.Metadata.Version,
		"airlines": len(tbl.Airlines),
		"routes":   len(tbl.Routes),
	})
}
