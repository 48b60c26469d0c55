package budgets

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almoxarifado/almoxarifado/internal/catalog"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/suppliers"
)

type memoryRepo struct {
	rows   map[int64]Budget
	nextID int64
}

func newMemoryRepo() *memoryRepo { return &memoryRepo{rows: map[int64]Budget{}} }

func (r *memoryRepo) Create(_ context.Context, b Budget) (Budget, error) {
	r.nextID++
	b.ID = r.nextID
	r.rows[b.ID] = b
	return b, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Budget, error) {
	b, ok := r.rows[id]
	if !ok {
		return Budget{}, fmt.Errorf("budget %d: %w", id, shared.ErrNotFound)
	}
	return b, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Summary, int, error) {
	var out []Summary
	for _, b := range r.rows {
		if filter.Owner != "" && b.Owner != filter.Owner {
			continue
		}
		out = append(out, Summary{ID: b.ID, Name: b.Name, Owner: b.Owner, LineCount: len(b.Lines), Total: b.Total})
	}
	return out, len(out), nil
}

func (r *memoryRepo) Update(ctx context.Context, b Budget) (Budget, error) {
	if _, err := r.Get(ctx, b.ID); err != nil {
		return Budget{}, err
	}
	r.rows[b.ID] = b
	return b, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	delete(r.rows, id)
	return nil
}

type fakeItems map[int64]catalog.Item

func (f fakeItems) GetItem(_ context.Context, id int64) (catalog.Item, error) {
	item, ok := f[id]
	if !ok {
		return catalog.Item{}, fmt.Errorf("item %d: %w", id, shared.ErrNotFound)
	}
	return item, nil
}

type fakeSuppliers map[int64]suppliers.Supplier

func (f fakeSuppliers) Get(_ context.Context, id int64) (suppliers.Supplier, error) {
	s, ok := f[id]
	if !ok {
		return suppliers.Supplier{}, fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	}
	return s, nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	items := fakeItems{
		1: {ID: 1, Name: "Caneta", Active: true},
		2: {ID: 2, Name: "Papel A4", Active: true},
		3: {ID: 3, Name: "Grampo", Active: false},
	}
	sups := fakeSuppliers{
		10: {ID: 10, Name: "Papelaria Central", Active: true},
		11: {ID: 11, Name: "Fechada", Active: false},
	}
	return NewService(repo, items, sups, nil), repo
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComposeRoundsToCents(t *testing.T) {
	lines, total := Compose([]LineInput{
		{ItemID: 1, SupplierID: 10, Quantity: 3, UnitPrice: money("10.005")},
		{ItemID: 2, SupplierID: 10, Quantity: 2, UnitPrice: money("0.1")},
	})
	require.Len(t, lines, 2)
	assert.Equal(t, "10.01", lines[0].UnitPrice.StringFixed(Places))
	assert.Equal(t, "30.03", lines[0].LineTotal.StringFixed(Places))
	assert.Equal(t, "0.20", lines[1].LineTotal.StringFixed(Places))
	assert.Equal(t, "30.23", total.StringFixed(Places))
}

func TestCreateAndReplaceLines(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	b, err := svc.Create(ctx, "ana", Input{
		Name:  "  Material de escritório  ",
		Lines: []LineInput{{ItemID: 1, SupplierID: 10, Quantity: 100, UnitPrice: money("1.50")}},
	})
	require.NoError(t, err)
	require.Equal(t, "Material de escritório", b.Name)
	require.Equal(t, "ana", b.Owner)
	require.Equal(t, "150.00", b.Total.StringFixed(Places))

	b, err = svc.Update(ctx, b.ID, Input{
		Name: "Material de escritório",
		Lines: []LineInput{
			{ItemID: 2, SupplierID: 10, Quantity: 5, UnitPrice: money("24.90")},
			{ItemID: 1, SupplierID: 10, Quantity: 10, UnitPrice: money("1.45")},
		},
	})
	require.NoError(t, err)
	require.Len(t, b.Lines, 2)
	require.Equal(t, "ana", b.Owner)
	require.Equal(t, "139.00", b.Total.StringFixed(Places))
	require.Equal(t, b, repo.rows[b.ID])

	list, total, err := svc.List(ctx, ListFilter{Owner: "ana"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, 2, list[0].LineCount)

	require.NoError(t, svc.Delete(ctx, b.ID))
	_, err = svc.Get(ctx, b.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateRejectsBadLines(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		line LineInput
		want error
	}{
		{"unknown item", LineInput{ItemID: 99, SupplierID: 10, Quantity: 1}, shared.ErrNotFound},
		{"inactive item", LineInput{ItemID: 3, SupplierID: 10, Quantity: 1}, shared.ErrNotFound},
		{"unknown supplier", LineInput{ItemID: 1, SupplierID: 99, Quantity: 1}, shared.ErrNotFound},
		{"inactive supplier", LineInput{ItemID: 1, SupplierID: 11, Quantity: 1}, shared.ErrValidation},
		{"zero quantity", LineInput{ItemID: 1, SupplierID: 10, Quantity: 0}, shared.ErrValidation},
		{"negative price", LineInput{ItemID: 1, SupplierID: 10, Quantity: 1, UnitPrice: money("-1")}, shared.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "ana", Input{Name: "Orçamento", Lines: []LineInput{tc.line}})
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := svc.Create(ctx, "ana", Input{Name: "Vazio"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, "", Input{Name: "Sem dono"})
	require.ErrorIs(t, err, shared.ErrMissingActor)
}

func TestLineInputAcceptsStringPrices(t *testing.T) {
	var in LineInput
	require.NoError(t, json.Unmarshal([]byte(`{"item_id":1,"supplier_id":10,"quantity":2,"unit_price":"12.34"}`), &in))
	require.True(t, in.UnitPrice.Equal(money("12.34")))
}
