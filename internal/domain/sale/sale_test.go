package sale

import (
	"errors"
	"testing"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qty(v int64) valueobject.Quantity {
	return valueobject.QuantityFromInt(v)
}

func mustItem(t *testing.T, designation string, quantity int64) *Item {
	t.Helper()
	item, err := NewItem(designation, qty(quantity))
	require.NoError(t, err)
	return item
}

func TestNewSale(t *testing.T) {
	t.Run("creates order", func(t *testing.T) {
		s, err := NewSale("SO-001", KindOrder)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, s.ID)
		assert.True(t, s.SupportsInvoicing())
		assert.True(t, s.SupportsShipment())
		assert.Equal(t, 0, s.Items.Len())
	})

	t.Run("quotes do not support invoicing", func(t *testing.T) {
		s, err := NewSale("Q-001", KindQuote)
		require.NoError(t, err)
		assert.False(t, s.SupportsInvoicing())
		assert.False(t, s.SupportsShipment())
	})

	t.Run("rejects empty number", func(t *testing.T) {
		_, err := NewSale("", KindOrder)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		_, err := NewSale("X", Kind("INVOICE"))
		assert.Error(t, err)
	})
}

func TestNewItem(t *testing.T) {
	_, err := NewItem("Widget", qty(0))
	assert.Error(t, err)

	_, err = NewItem("", qty(1))
	assert.Error(t, err)

	_, err = NewItem("Widget", valueobject.UnlimitedQuantity())
	assert.Error(t, err)
}

func TestItemTree_TotalQuantity(t *testing.T) {
	s, err := NewSale("SO-001", KindOrder)
	require.NoError(t, err)

	bundle := mustItem(t, "Bundle", 2)
	box := mustItem(t, "Box", 3)
	screw := mustItem(t, "Screw", 4)

	require.NoError(t, s.AddItem(uuid.Nil, bundle))
	require.NoError(t, s.AddItem(bundle.ID, box))
	require.NoError(t, s.AddItem(box.ID, screw))

	assert.True(t, s.TotalQuantity(bundle).Equal(qty(2)))
	assert.True(t, s.TotalQuantity(box).Equal(qty(6)))
	assert.True(t, s.TotalQuantity(screw).Equal(qty(24)))
	assert.True(t, s.Items.TotalQuantity(uuid.New()).IsZero())
}

func TestItemTree_Navigation(t *testing.T) {
	tree := NewItemTree()
	a := mustItem(t, "A", 1)
	b := mustItem(t, "B", 1)
	a1 := mustItem(t, "A1", 1)
	a2 := mustItem(t, "A2", 1)

	require.NoError(t, tree.Add(uuid.Nil, a))
	require.NoError(t, tree.Add(uuid.Nil, b))
	require.NoError(t, tree.Add(a.ID, a1))
	require.NoError(t, tree.Add(a.ID, a2))

	t.Run("duplicate item", func(t *testing.T) {
		assert.Error(t, tree.Add(uuid.Nil, a))
	})

	t.Run("unknown parent", func(t *testing.T) {
		err := tree.Add(uuid.New(), mustItem(t, "C", 1))
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("parent and children", func(t *testing.T) {
		parent, ok := tree.Parent(a2.ID)
		require.True(t, ok)
		assert.Equal(t, a.ID, parent.ID)

		_, ok = tree.Parent(a.ID)
		assert.False(t, ok)

		assert.Equal(t, []*Item{a1, a2}, tree.Children(a.ID))
		assert.True(t, tree.HasChildren(a.ID))
		assert.False(t, tree.HasChildren(b.ID))
		assert.Equal(t, []*Item{a, b}, tree.Roots())
	})

	t.Run("depth first order", func(t *testing.T) {
		assert.Equal(t, []*Item{a, a1, a2, b}, tree.All())
	})

	t.Run("walk can skip children", func(t *testing.T) {
		var visited []string
		tree.Walk(func(item *Item, depth int) bool {
			visited = append(visited, item.Designation)
			return item.ID != a.ID
		})
		assert.Equal(t, []string{"A", "B"}, visited)
	})
}

func TestSubject_Validate(t *testing.T) {
	s, err := NewSale("SO-001", KindOrder)
	require.NoError(t, err)
	item := mustItem(t, "Widget", 1)
	require.NoError(t, s.AddItem(uuid.Nil, item))
	discount := NewDiscount("Promo", AdjustmentModePercent, decimal.NewFromInt(10))
	s.AddAdjustment(discount)

	tests := []struct {
		name    string
		subject Subject
		wantErr bool
		kind    SubjectKind
		id      uuid.UUID
	}{
		{"item", ItemSubject(s, item), false, SubjectKindItem, item.ID},
		{"discount", DiscountSubject(s, discount), false, SubjectKindDiscount, discount.ID},
		{"shipment", ShipmentSubject(s), false, SubjectKindShipment, s.ID},
		{"zero value", Subject{}, true, SubjectKindUnknown, uuid.Nil},
		{"item without item", ItemSubject(s, nil), true, SubjectKindItem, uuid.Nil},
		{"taxation is not a discount", DiscountSubject(s, &Adjustment{ID: uuid.New(), Type: AdjustmentTypeTaxation}), true, SubjectKindDiscount, uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.subject.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, shared.ErrUnsupportedSubject))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, tt.subject.Kind())
			assert.Equal(t, tt.id, tt.subject.ID())
		})
	}
}

func TestSale_FindAdjustment(t *testing.T) {
	s, err := NewSale("SO-001", KindOrder)
	require.NoError(t, err)
	item := mustItem(t, "Widget", 1)
	require.NoError(t, s.AddItem(uuid.Nil, item))

	itemDiscount := NewDiscount("Item promo", AdjustmentModeFlat, decimal.NewFromInt(5))
	item.AddAdjustment(itemDiscount)

	found, ok := s.FindAdjustment(itemDiscount.ID)
	require.True(t, ok)
	assert.Equal(t, item.ID, *found.ItemID)

	_, ok = s.FindAdjustment(uuid.New())
	assert.False(t, ok)
}

func TestProductCatalog_Resolve(t *testing.T) {
	tracked := &Product{ID: uuid.New(), StockMode: StockModeAuto}
	untracked := &Product{ID: uuid.New(), StockMode: StockModeDisabled}
	bundle := &Product{ID: uuid.New(), StockMode: StockModeAuto, Compound: true}
	catalog := ProductCatalog{}
	catalog.Add(tracked, untracked, bundle)

	item := mustItem(t, "Widget", 1)
	_, ok := catalog.Resolve(item)
	assert.False(t, ok)

	item.ProductID = &tracked.ID
	p, ok := catalog.Resolve(item)
	require.True(t, ok)
	assert.True(t, p.IsStockTracked())
	assert.False(t, untracked.IsStockTracked())
	assert.False(t, bundle.IsStockTracked())

	_, err := ParseStockMode("SOMETIMES")
	assert.Error(t, err)
}
