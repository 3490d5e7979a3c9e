package pipeline

import (
	"context"
	"errors"
	"testing"

	"skatescore/internal"
)

func TestResolveCompetitionReusesExactName(t *testing.T) {
	ctx := context.Background()
	store := &memStore{
		next:         map[internal.RecordType]int64{internal.RecordCompetitions: 3},
		competitions: []internal.Competition{{ID: 2, Name: "GP NHK Trophy", Season: "2025-2026"}},
	}

	comp, created, err := ResolveCompetition(ctx, store, CompetitionInput{Name: "GP NHK Trophy", Season: "2025-2026"})
	if err != nil {
		t.Fatal(err)
	}
	if created || comp.ID != 2 || len(store.competitions) != 1 {
		t.Fatalf("comp=%+v created=%v stored=%d", comp, created, len(store.competitions))
	}

	comp, created, err = ResolveCompetition(ctx, store, CompetitionInput{Name: "GP NHK Trophy 2025", Season: "2025-2026"})
	if err != nil {
		t.Fatal(err)
	}
	if !created || comp.ID != 3 || len(store.competitions) != 2 {
		t.Fatalf("comp=%+v created=%v stored=%d", comp, created, len(store.competitions))
	}
}

func TestResolveCompetitionRequiresName(t *testing.T) {
	if _, _, err := ResolveCompetition(context.Background(), &memStore{}, CompetitionInput{Name: "  "}); err == nil {
		t.Fatal("expected error")
	}
}

func TestIDAllocationFailureIsHard(t *testing.T) {
	ctx := context.Background()
	store := &memStore{nextErr: errors.New("elements.csv: bad id")}

	if _, err := NewIDAllocator(ctx, store); !errors.Is(err, ErrIDAllocation) {
		t.Fatalf("err=%v", err)
	}
	if _, _, err := ResolveCompetition(ctx, store, CompetitionInput{Name: "Worlds", Season: "2025-2026"}); !errors.Is(err, ErrIDAllocation) {
		t.Fatalf("err=%v", err)
	}

	bad := &memStore{next: map[internal.RecordType]int64{internal.RecordComponents: 0}}
	if _, err := NewIDAllocator(ctx, bad); !errors.Is(err, ErrIDAllocation) {
		t.Fatalf("err=%v", err)
	}
}

func TestIDAllocatorIncrementsPerType(t *testing.T) {
	a, err := NewIDAllocator(context.Background(), &memStore{next: map[internal.RecordType]int64{internal.RecordElements: 10}})
	if err != nil {
		t.Fatal(err)
	}
	if a.Next(internal.RecordElements) != 10 || a.Next(internal.RecordElements) != 11 {
		t.Fatal("elements not sequential")
	}
	if a.Next(internal.RecordPerformances) != 1 || a.Peek(internal.RecordPerformances) != 2 {
		t.Fatal("performances not independent")
	}
}
