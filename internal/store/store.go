// Package store persists pipeline state between stages: run records, staged
// parcels and layers, the fitted model, and test-set predictions. Two
// backends implement the interface: SQLite (default) and Postgres.
package store

import (
	"context"
	"time"

	"github.com/sells-group/hedonic-cli/internal/evaluate"
	"github.com/sells-group/hedonic-cli/internal/hedonic"
	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// RunStatus tracks the lifecycle of a pipeline stage run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run records one execution of a pipeline stage.
type Run struct {
	ID         string         `json:"id"`
	Stage      string         `json:"stage"`
	Status     RunStatus      `json:"status"`
	Metrics    map[string]any `json:"metrics,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Store defines the persistence interface for the pricing pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, stage string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, status RunStatus, metrics map[string]any) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Staged dataset
	SaveParcels(ctx context.Context, parcels []*parcel.Parcel) error
	LoadParcels(ctx context.Context) ([]*parcel.Parcel, error)
	SaveLayer(ctx context.Context, layer *parcel.Layer) error
	LoadLayer(ctx context.Context, name string) (*parcel.Layer, error)

	// Model artifacts
	SaveModel(ctx context.Context, m *hedonic.Model) error
	LoadModel(ctx context.Context) (*hedonic.Model, error)
	SavePredictions(ctx context.Context, preds []evaluate.Prediction) error
	LoadPredictions(ctx context.Context) ([]evaluate.Prediction, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
