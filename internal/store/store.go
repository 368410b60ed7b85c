// Package store persists runs and the derived tables of the contrast pipeline.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/night-light/internal/contrast"
	"github.com/sells-group/night-light/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when a requested run or crosswalk does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// ResultFilter specifies criteria for listing contrast results. A zero
// Limit returns every match.
type ResultFilter struct {
	Contrast    string `json:"contrast,omitempty"`
	CrosswalkID int64  `json:"crosswalk_id,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the contrast pipeline. Every
// Replace method swaps the whole table inside one transaction.
type Store interface {
	contrast.Sink

	// Runs
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	LatestRun(ctx context.Context) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results
	ListResults(ctx context.Context, filter ResultFilter) ([]model.ContrastResult, error)
	GetCenterResults(ctx context.Context, crosswalkID int64) ([]model.ContrastResult, error)
	ListClassifications(ctx context.Context, crosswalkID int64) ([]model.SideClassification, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store selected by driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite, "":
		return NewSQLite(dsn)
	case DriverPostgres, "postgresql":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
