package persistence

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/fulfillment/internal/domain/integrity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormIntegritySource_Violations(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	first, second := uuid.New(), uuid.New()
	assertion := integrity.FinalAssertions[1]
	mock.ExpectQuery(regexp.QuoteMeta(assertion.SQL())).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow(first.String()).
			AddRow(second.String()))

	ids, err := NewGormIntegritySource(db.DB).Violations(context.Background(), assertion)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first, second}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormIntegritySource_Violations_Error(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	assertion := integrity.FinalAssertions[0]
	mock.ExpectQuery(regexp.QuoteMeta(assertion.SQL())).WillReturnError(assert.AnError)

	_, err := NewGormIntegritySource(db.DB).Violations(context.Background(), assertion)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), assertion.Name)
}

func TestGormIntegritySource_UnitRows(t *testing.T) {
	unitID, productID := uuid.New(), uuid.New()

	tests := []struct {
		name     string
		field    integrity.UnitField
		contains string
	}{
		{name: "sold", field: integrity.UnitFieldSold, contains: "u.sold_quantity AS stored"},
		{name: "shipped", field: integrity.UnitFieldShipped, contains: "u.shipped_quantity AS stored"},
		{name: "adjusted", field: integrity.UnitFieldAdjusted, contains: "FROM stock_adjustments j"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, mockDB := newMockDatabase(t)
			defer mockDB.Close()

			mock.ExpectQuery(regexp.QuoteMeta(tt.contains)).
				WillReturnRows(sqlmock.NewRows([]string{"unit_id", "product_id", "stored", "computed"}).
					AddRow(unitID.String(), productID.String(), "3", "5.5"))

			rows, err := NewGormIntegritySource(db.DB).UnitRows(context.Background(), tt.field)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, unitID, rows[0].UnitID)
			assert.Equal(t, productID, rows[0].ProductID)
			assert.True(t, rows[0].Stored.Equal(qty(3)))
			assert.Equal(t, "5.5", rows[0].Computed.String())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("unknown field", func(t *testing.T) {
		db, _, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		_, err := NewGormIntegritySource(db.DB).UnitRows(context.Background(), integrity.UnitField("ordered"))
		assert.Error(t, err)
	})
}

func TestGormIntegritySource_AssignmentsOf_Empty(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	rows, err := NewGormIntegritySource(db.DB).AssignmentsOf(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
