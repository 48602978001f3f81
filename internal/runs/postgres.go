package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS norm_runs (
	id         BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	source     TEXT NOT NULL,
	fe_method  TEXT NOT NULL,
	fe_params  TEXT NOT NULL DEFAULT '',
	samples    INTEGER NOT NULL,
	over_sum   BIGINT[] NOT NULL DEFAULT '{}',
	result_csv BYTEA NOT NULL
)`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenDB connects to connStr, requiring TLS unless the string says otherwise.
func OpenDB(connStr string) (*sql.DB, error) {
	if !strings.Contains(connStr, "sslmode=") {
		if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
			if strings.Contains(connStr, "?") {
				connStr += "&sslmode=require"
			} else {
				connStr += "?sslmode=require"
			}
		} else {
			connStr += " sslmode=require"
		}
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("configure database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not reachable: %w", err)
	}
	return db, nil
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *PostgresRepository) Save(ctx context.Context, run *Run) (int64, error) {
	query := `INSERT INTO norm_runs (source, fe_method, fe_params, samples, over_sum, result_csv)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		run.Source, run.FeMethod, run.FeParams, run.Samples, pq.Array(toInt64(run.OverSum)), run.ResultCSV,
	).Scan(&run.ID, &run.CreatedAt)
	return run.ID, err
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Run, error) {
	query := `SELECT id, created_at, source, fe_method, fe_params, samples, over_sum, result_csv
		FROM norm_runs WHERE id=$1`
	var run Run
	var over pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.CreatedAt, &run.Source, &run.FeMethod, &run.FeParams, &run.Samples, &over, &run.ResultCSV)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	run.OverSum = fromInt64(over)
	return &run, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, created_at, source, fe_method, fe_params, samples, over_sum
		FROM norm_runs ORDER BY id DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var over pq.Int64Array
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.Source, &run.FeMethod, &run.FeParams, &run.Samples, &over); err != nil {
			return nil, err
		}
		run.OverSum = fromInt64(over)
		out = append(out, run)
	}
	return out, rows.Err()
}

func toInt64(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}

func fromInt64(v []int64) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
