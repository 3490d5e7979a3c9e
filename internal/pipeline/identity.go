package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"skatescore/internal"
)

var ErrIDAllocation = errors.New("id allocation failed")

// Store is what the importer needs from persistence.
type Store interface {
	NextID(ctx context.Context, rt internal.RecordType) (int64, error)
	FindCompetitionByName(ctx context.Context, name string) (*internal.Competition, error)
	SaveCompetition(ctx context.Context, c internal.Competition) error
	SaveBatch(ctx context.Context, b internal.Batch) error
}

// RunRecorder is implemented by stores that keep a log of import runs.
type RunRecorder interface {
	InsertRun(ctx context.Context, run internal.ImportRun) error
	HasImportedHash(ctx context.Context, hash string) (bool, error)
}

type CompetitionInput struct {
	Name     string
	Season   string
	Location *string
	Date     *string
}

// ResolveCompetition reuses the competition stored under the exact same name
// or creates it. The bool reports whether a new record was saved.
func ResolveCompetition(ctx context.Context, store Store, in CompetitionInput) (internal.Competition, bool, error) {
	if strings.TrimSpace(in.Name) == "" {
		return internal.Competition{}, false, errors.New("competition name is required")
	}

	existing, err := store.FindCompetitionByName(ctx, in.Name)
	if err != nil {
		return internal.Competition{}, false, fmt.Errorf("lookup competition %q: %w", in.Name, err)
	}
	if existing != nil {
		return *existing, false, nil
	}

	id, err := store.NextID(ctx, internal.RecordCompetitions)
	if err != nil {
		return internal.Competition{}, false, fmt.Errorf("%w: competitions: %v", ErrIDAllocation, err)
	}
	comp := internal.Competition{
		ID:       id,
		Name:     in.Name,
		Season:   in.Season,
		Location: in.Location,
		Date:     in.Date,
	}
	if err := store.SaveCompetition(ctx, comp); err != nil {
		return internal.Competition{}, false, fmt.Errorf("save competition: %w", err)
	}
	return comp, true, nil
}

// IDAllocator hands out record ids for one run. Starting points are read
// from the store once; later ids are assigned in memory.
type IDAllocator struct {
	next map[internal.RecordType]int64
}

func NewIDAllocator(ctx context.Context, store Store) (*IDAllocator, error) {
	a := &IDAllocator{next: map[internal.RecordType]int64{}}
	for _, rt := range []internal.RecordType{internal.RecordPerformances, internal.RecordElements, internal.RecordComponents} {
		id, err := store.NextID(ctx, rt)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrIDAllocation, rt, err)
		}
		if id < 1 {
			return nil, fmt.Errorf("%w: %s: store returned %d", ErrIDAllocation, rt, id)
		}
		a.next[rt] = id
	}
	return a, nil
}

func (a *IDAllocator) Next(rt internal.RecordType) int64 {
	id := a.next[rt]
	if id < 1 {
		id = 1
	}
	a.next[rt] = id + 1
	return id
}

func (a *IDAllocator) Peek(rt internal.RecordType) int64 {
	if id := a.next[rt]; id > 0 {
		return id
	}
	return 1
}
