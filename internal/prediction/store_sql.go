package prediction

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLStore keeps history in the predictions table. Queries use $n
// placeholders, which both sqlite and postgres accept.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Save(ctx context.Context, r Record) error {
	fj, err := json.Marshal(r.Features)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO predictions
		(id,airline,origin,destination,departure,distance_km,hour_bucket,day_of_week,delayed,probability,features_json,encoder_version,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		r.ID, r.Airline, r.Origin, r.Destination, r.Departure, r.DistanceKM, r.HourBucket, r.DayOfWeek,
		boolInt(r.Delayed), r.Probability, string(fj), r.EncoderVersion, r.CreatedAt.Unix())
	return err
}

const selectCols = `id,airline,origin,destination,departure,distance_km,hour_bucket,day_of_week,delayed,probability,features_json,encoder_version,created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r       Record
		delayed int
		fj      string
		created int64
	)
	if err := row.Scan(&r.ID, &r.Airline, &r.Origin, &r.Destination, &r.Departure, &r.DistanceKM,
		&r.HourBucket, &r.DayOfWeek, &delayed, &r.Probability, &fj, &r.EncoderVersion, &created); err != nil {
		return Record{}, err
	}
	r.Delayed = delayed != 0
	r.CreatedAt = time.Unix(created, 0)
	if err := json.Unmarshal([]byte(fj), &r.Features); err != nil {
		return Record{}, fmt.Errorf("prediction %s: decode features: %w", r.ID, err)
	}
	return r, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM predictions WHERE id=$1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Record, error) {
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if a := strings.ToUpper(strings.TrimSpace(opts.Airline)); a != "" {
		where = append(where, "airline = "+arg(a))
	}
	if opts.Delayed != nil {
		where = append(where, "delayed = "+arg(boolInt(*opts.Delayed)))
	}

	q := `SELECT ` + selectCols + ` FROM predictions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ` + arg(opts.Limit) + ` OFFSET ` + arg(opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountSince(ctx context.Context, since time.Time) (int64, int64, error) {
	var total, delayed sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(delayed) FROM predictions WHERE created_at >= $1`, since.Unix(),
	).Scan(&total, &delayed)
	if err != nil {
		return 0, 0, err
	}
	return total.Int64, delayed.Int64, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
