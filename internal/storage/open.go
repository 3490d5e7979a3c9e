package storage

import (
	"context"
	"fmt"

	"skatescore/internal"
	"skatescore/internal/config"
)

// Store is the surface shared by the sqlite and CSV backends.
type Store interface {
	NextID(ctx context.Context, rt internal.RecordType) (int64, error)
	FindCompetitionByName(ctx context.Context, name string) (*internal.Competition, error)
	GetCompetition(ctx context.Context, id int64) (*internal.Competition, error)
	SaveCompetition(ctx context.Context, c internal.Competition) error
	ListCompetitions(ctx context.Context) ([]internal.Competition, error)
	SaveBatch(ctx context.Context, b internal.Batch) error
	ListPerformances(ctx context.Context, competitionID int64, category internal.Category) ([]internal.Performance, error)
	ListElements(ctx context.Context, performanceIDs []int64) ([]internal.Element, error)
	ListComponents(ctx context.Context, performanceIDs []int64) ([]internal.Component, error)
	Close() error
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*CSVStore)(nil)
)

// OpenConfigured opens the backend selected by store_backend.
func OpenConfigured(cfg config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return Open(cfg.DBPath)
	case config.BackendCSV:
		return OpenCSV(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
