package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/hedonic-cli/internal/evaluate"
	"github.com/sells-group/hedonic-cli/internal/hedonic"
	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	stage       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	metrics     TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS parcels (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL,
	sale_price REAL NOT NULL,
	x          REAL NOT NULL,
	y          REAL NOT NULL,
	data       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS layers (
	name TEXT PRIMARY KEY,
	kind TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS layer_features (
	layer_name TEXT NOT NULL REFERENCES layers(name),
	idx        INTEGER NOT NULL,
	geom       BLOB NOT NULL,
	attrs      TEXT NOT NULL,
	num_attrs  TEXT NOT NULL,
	PRIMARY KEY (layer_name, idx)
);

CREATE TABLE IF NOT EXISTS models (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS predictions (
	parcel_id TEXT PRIMARY KEY,
	data      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage);
CREATE INDEX IF NOT EXISTS idx_parcels_label ON parcels(label);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, stage string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Stage:     stage,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, stage, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Stage, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status RunStatus, metrics map[string]any) error {
	var metricsJSON []byte
	if metrics != nil {
		var err error
		metricsJSON, err = json.Marshal(metrics)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run metrics")
		}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, metrics = ?, finished_at = ? WHERE id = ?`,
		status, nullableString(metricsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: complete run")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: complete run rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stage, status, metrics, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var metrics sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Stage, &r.Status, &metrics, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if metrics.Valid {
			if err := json.Unmarshal([]byte(metrics.String), &r.Metrics); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run metrics")
			}
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

// SaveParcels replaces the staged parcel set.
func (s *SQLiteStore) SaveParcels(ctx context.Context, parcels []*parcel.Parcel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save parcels")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM parcels`); err != nil {
		return eris.Wrap(err, "sqlite: clear parcels")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO parcels (id, label, sale_price, x, y, data) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare parcel insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range parcels {
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal parcel %s", p.ID)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Label, p.SalePrice, p.X, p.Y, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: insert parcel %s", p.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit parcels")
}

func (s *SQLiteStore) LoadParcels(ctx context.Context) ([]*parcel.Parcel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM parcels ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load parcels")
	}
	defer func() { _ = rows.Close() }()

	var parcels []*parcel.Parcel
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan parcel")
		}
		var p parcel.Parcel
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal parcel")
		}
		parcels = append(parcels, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate parcels")
	}
	if len(parcels) == 0 {
		return nil, eris.New("sqlite: no staged parcels; run ingest first")
	}
	return parcels, nil
}

// SaveLayer replaces the named layer.
func (s *SQLiteStore) SaveLayer(ctx context.Context, layer *parcel.Layer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save layer")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM layer_features WHERE layer_name = ?`, layer.Name); err != nil {
		return eris.Wrap(err, "sqlite: clear layer features")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO layers (name, kind) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET kind = excluded.kind`,
		layer.Name, layer.Kind,
	); err != nil {
		return eris.Wrap(err, "sqlite: upsert layer")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO layer_features (layer_name, idx, geom, attrs, num_attrs) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare feature insert")
	}
	defer func() { _ = stmt.Close() }()

	for i := range layer.Features {
		enc, err := encodeFeature(&layer.Features[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, layer.Name, i, enc.geom, string(enc.attrs), string(enc.numAttrs)); err != nil {
			return eris.Wrapf(err, "sqlite: insert feature %d of %s", i, layer.Name)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit layer")
}

func (s *SQLiteStore) LoadLayer(ctx context.Context, name string) (*parcel.Layer, error) {
	var kind parcel.LayerKind
	err := s.db.QueryRowContext(ctx, `SELECT kind FROM layers WHERE name = ?`, name).Scan(&kind)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: layer %s not staged; run ingest first", name)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load layer kind")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT geom, attrs, num_attrs FROM layer_features WHERE layer_name = ? ORDER BY idx`, name)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load layer features")
	}
	defer func() { _ = rows.Close() }()

	layer := &parcel.Layer{Name: name, Kind: kind}
	for rows.Next() {
		var enc encodedFeature
		var attrs, numAttrs string
		if err := rows.Scan(&enc.geom, &attrs, &numAttrs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan layer feature")
		}
		enc.attrs = []byte(attrs)
		enc.numAttrs = []byte(numAttrs)
		f, err := decodeFeature(kind, enc)
		if err != nil {
			return nil, err
		}
		layer.Features = append(layer.Features, f)
	}
	return layer, eris.Wrap(rows.Err(), "sqlite: iterate layer features")
}

func (s *SQLiteStore) SaveModel(ctx context.Context, m *hedonic.Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal model")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO models (id, data, created_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		string(data), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save model")
}

func (s *SQLiteStore) LoadModel(ctx context.Context) (*hedonic.Model, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM models WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.New("sqlite: no fitted model; run fit first")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load model")
	}
	var m hedonic.Model
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal model")
	}
	return &m, nil
}

func (s *SQLiteStore) SavePredictions(ctx context.Context, preds []evaluate.Prediction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save predictions")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM predictions`); err != nil {
		return eris.Wrap(err, "sqlite: clear predictions")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO predictions (parcel_id, data) VALUES (?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare prediction insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range preds {
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal prediction %s", p.ID)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: insert prediction %s", p.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit predictions")
}

func (s *SQLiteStore) LoadPredictions(ctx context.Context) ([]evaluate.Prediction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM predictions ORDER BY parcel_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load predictions")
	}
	defer func() { _ = rows.Close() }()

	var preds []evaluate.Prediction
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prediction")
		}
		var p evaluate.Prediction
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal prediction")
		}
		preds = append(preds, p)
	}
	return preds, eris.Wrap(rows.Err(), "sqlite: iterate predictions")
}

func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
