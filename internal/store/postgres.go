package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hedonic-cli/internal/evaluate"
	"github.com/sells-group/hedonic-cli/internal/hedonic"
	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// Pool abstracts pgxpool.Pool so tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	stage       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	metrics     JSONB,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS parcels (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL,
	sale_price DOUBLE PRECISION NOT NULL,
	x          DOUBLE PRECISION NOT NULL,
	y          DOUBLE PRECISION NOT NULL,
	data       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS layers (
	name TEXT PRIMARY KEY,
	kind TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS layer_features (
	layer_name TEXT NOT NULL REFERENCES layers(name),
	idx        INTEGER NOT NULL,
	geom       BYTEA NOT NULL,
	attrs      JSONB NOT NULL,
	num_attrs  JSONB NOT NULL,
	PRIMARY KEY (layer_name, idx)
);

CREATE TABLE IF NOT EXISTS models (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS predictions (
	parcel_id TEXT PRIMARY KEY,
	data      JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage);
CREATE INDEX IF NOT EXISTS idx_parcels_label ON parcels(label);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, stage string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Stage:     stage,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, stage, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Stage, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status RunStatus, metrics map[string]any) error {
	var metricsJSON []byte
	if metrics != nil {
		var err error
		metricsJSON, err = json.Marshal(metrics)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run metrics")
		}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, metrics = $2, finished_at = $3 WHERE id = $4`,
		string(status), metricsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, stage, status, metrics, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var metrics []byte
		var finished *time.Time
		if err := rows.Scan(&r.ID, &r.Stage, &r.Status, &metrics, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if metrics != nil {
			if err := json.Unmarshal(metrics, &r.Metrics); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run metrics")
			}
		}
		r.FinishedAt = finished
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) SaveParcels(ctx context.Context, parcels []*parcel.Parcel) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save parcels")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM parcels`); err != nil {
		return eris.Wrap(err, "postgres: clear parcels")
	}
	for _, p := range parcels {
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal parcel %s", p.ID)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO parcels (id, label, sale_price, x, y, data) VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, string(p.Label), p.SalePrice, p.X, p.Y, data,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert parcel %s", p.ID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit parcels")
}

func (s *PostgresStore) LoadParcels(ctx context.Context) ([]*parcel.Parcel, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM parcels ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load parcels")
	}
	defer rows.Close()

	var parcels []*parcel.Parcel
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan parcel")
		}
		var p parcel.Parcel
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal parcel")
		}
		parcels = append(parcels, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate parcels")
	}
	if len(parcels) == 0 {
		return nil, eris.New("postgres: no staged parcels; run ingest first")
	}
	return parcels, nil
}

func (s *PostgresStore) SaveLayer(ctx context.Context, layer *parcel.Layer) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save layer")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM layer_features WHERE layer_name = $1`, layer.Name); err != nil {
		return eris.Wrap(err, "postgres: clear layer features")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO layers (name, kind) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET kind = excluded.kind`,
		layer.Name, string(layer.Kind),
	); err != nil {
		return eris.Wrap(err, "postgres: upsert layer")
	}

	for i := range layer.Features {
		enc, err := encodeFeature(&layer.Features[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO layer_features (layer_name, idx, geom, attrs, num_attrs) VALUES ($1, $2, $3, $4, $5)`,
			layer.Name, i, enc.geom, enc.attrs, enc.numAttrs,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert feature %d of %s", i, layer.Name)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit layer")
}

func (s *PostgresStore) LoadLayer(ctx context.Context, name string) (*parcel.Layer, error) {
	var kind parcel.LayerKind
	err := s.pool.QueryRow(ctx, `SELECT kind FROM layers WHERE name = $1`, name).Scan(&kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: layer %s not staged; run ingest first", name)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load layer kind")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT geom, attrs, num_attrs FROM layer_features WHERE layer_name = $1 ORDER BY idx`, name)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load layer features")
	}
	defer rows.Close()

	layer := &parcel.Layer{Name: name, Kind: kind}
	for rows.Next() {
		var enc encodedFeature
		if err := rows.Scan(&enc.geom, &enc.attrs, &enc.numAttrs); err != nil {
			return nil, eris.Wrap(err, "postgres: scan layer feature")
		}
		f, err := decodeFeature(kind, enc)
		if err != nil {
			return nil, err
		}
		layer.Features = append(layer.Features, f)
	}
	return layer, eris.Wrap(rows.Err(), "postgres: iterate layer features")
}

func (s *PostgresStore) SaveModel(ctx context.Context, m *hedonic.Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal model")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO models (id, data, created_at) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		data, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save model")
}

func (s *PostgresStore) LoadModel(ctx context.Context) (*hedonic.Model, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM models WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("postgres: no fitted model; run fit first")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load model")
	}
	var m hedonic.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal model")
	}
	return &m, nil
}

func (s *PostgresStore) SavePredictions(ctx context.Context, preds []evaluate.Prediction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save predictions")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM predictions`); err != nil {
		return eris.Wrap(err, "postgres: clear predictions")
	}
	for _, p := range preds {
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal prediction %s", p.ID)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO predictions (parcel_id, data) VALUES ($1, $2)`,
			p.ID, data,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert prediction %s", p.ID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit predictions")
}

func (s *PostgresStore) LoadPredictions(ctx context.Context) ([]evaluate.Prediction, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM predictions ORDER BY parcel_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load predictions")
	}
	defer rows.Close()

	var preds []evaluate.Prediction
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction")
		}
		var p evaluate.Prediction
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal prediction")
		}
		preds = append(preds, p)
	}
	return preds, eris.Wrap(rows.Err(), "postgres: iterate predictions")
}
