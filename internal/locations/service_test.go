package locations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/almoxarifado/almoxarifado/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	rows   map[int64]Location
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[int64]Location)}
}

func (r *memoryRepo) nameTaken(owner, name string, except int64) bool {
	for id, l := range r.rows {
		if id != except && l.Owner == owner && strings.EqualFold(l.Name, name) {
			return true
		}
	}
	return false
}

func (r *memoryRepo) Create(_ context.Context, loc Location) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTaken(loc.Owner, loc.Name, 0) {
		return Location{}, fmt.Errorf("location %q: %w", loc.Name, shared.ErrDuplicate)
	}
	r.nextID++
	now := time.Now().UTC()
	loc.ID, loc.Active, loc.CreatedAt, loc.UpdatedAt = r.nextID, true, now, now
	r.rows[loc.ID] = loc
	return loc, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.rows[id]
	if !ok {
		return Location{}, fmt.Errorf("location %d: %w", id, shared.ErrNotFound)
	}
	return loc, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Location, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Location
	for _, l := range r.rows {
		if filter.Owner != "" && l.Owner != filter.Owner {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(l.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Active != nil && l.Active != *filter.Active {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	start := shared.Offset(filter.Page, filter.Limit)
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (r *memoryRepo) Rename(_ context.Context, id int64, name string) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.rows[id]
	if !ok {
		return Location{}, fmt.Errorf("location %d: %w", id, shared.ErrNotFound)
	}
	if r.nameTaken(loc.Owner, name, id) {
		return Location{}, fmt.Errorf("location %q: %w", name, shared.ErrDuplicate)
	}
	loc.Name = name
	r.rows[id] = loc
	return loc, nil
}

func (r *memoryRepo) SetActive(_ context.Context, id int64, active bool) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.rows[id]
	if !ok {
		return Location{}, fmt.Errorf("location %d: %w", id, shared.ErrNotFound)
	}
	loc.Active = active
	r.rows[id] = loc
	return loc, nil
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func TestCreateTrimsAndValidatesName(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	loc, err := svc.Create(ctx, CreateInput{Name: "  Depósito Central  ", Owner: "ana"})
	require.NoError(t, err)
	require.Equal(t, "Depósito Central", loc.Name)
	require.True(t, loc.Active)

	_, err = svc.Create(ctx, CreateInput{Name: "   ", Owner: "ana"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Name: strings.Repeat("é", MaxNameLength+1), Owner: "ana"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Name: strings.Repeat("é", MaxNameLength), Owner: "ana"})
	require.NoError(t, err)
}

func TestCreateRejectsDuplicateNamePerOwner(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Sala 1", Owner: "ana"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Name: "Sala 1", Owner: "ana"})
	require.ErrorIs(t, err, shared.ErrDuplicate)

	_, err = svc.Create(ctx, CreateInput{Name: "Sala 1", Owner: "bruno"})
	require.NoError(t, err)
}

func TestDeactivateIsIdempotentAndAudited(t *testing.T) {
	audit := &recordingAudit{}
	svc := NewService(newMemoryRepo(), audit, nil)
	ctx := shared.ContextWithActor(context.Background(), "ana")

	loc, err := svc.Create(ctx, CreateInput{Name: "Sala 2", Owner: "ana"})
	require.NoError(t, err)

	got, err := svc.Deactivate(ctx, loc.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	got, err = svc.Deactivate(ctx, loc.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	got, err = svc.Activate(ctx, loc.ID)
	require.NoError(t, err)
	require.True(t, got.Active)

	require.Len(t, audit.logs, 3)
	require.Equal(t, "location.deactivate", audit.logs[1].Action)
	require.Equal(t, "ana", audit.logs[1].Actor)
}

func TestGetUnknownLocation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	_, err := svc.Get(context.Background(), 42)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateRenames(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateInput{Name: "A", Owner: "ana"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "B", Owner: "ana"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, a.ID, UpdateInput{Name: "B"})
	require.ErrorIs(t, err, shared.ErrDuplicate)

	renamed, err := svc.Update(ctx, a.ID, UpdateInput{Name: " C "})
	require.NoError(t, err)
	require.Equal(t, "C", renamed.Name)
}

func TestListFiltersActive(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		_, err := svc.Create(ctx, CreateInput{Name: name, Owner: "ana"})
		require.NoError(t, err)
	}
	_, err := svc.Deactivate(ctx, 2)
	require.NoError(t, err)

	active := true
	list, total, err := svc.List(ctx, ListFilter{Active: &active})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "Alpha", list[0].Name)
	require.Equal(t, "Gamma", list[1].Name)

	list, total, err = svc.List(ctx, ListFilter{Search: "et", Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Beta", list[0].Name)
}
