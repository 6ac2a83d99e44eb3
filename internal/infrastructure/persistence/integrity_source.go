package persistence

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/integrity"
	"github.com/erp/fulfillment/internal/domain/invoice"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/erp/fulfillment/internal/domain/shipment"
	"github.com/erp/fulfillment/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// itemTotalsCTE computes the total quantity of every sale item: its own quantity
// multiplied by the quantities of all its ancestors.
const itemTotalsCTE = `WITH RECURSIVE item_totals (id, total) AS (
	SELECT id, CAST(quantity AS NUMERIC) FROM sale_items WHERE parent_id IS NULL
	UNION ALL
	SELECT c.id, CAST(c.quantity * t.total AS NUMERIC) FROM sale_items c JOIN item_totals t ON c.parent_id = t.id
)`

const itemSoldSQL = itemTotalsCTE + `
SELECT
	i.id AS sale_item_id,
	s.number AS sale_number,
	i.designation,
	t.total,
	(SELECT COALESCE(SUM(l.quantity), 0) FROM invoice_lines l JOIN invoices v ON v.id = l.invoice_id
		WHERE l.item_id = i.id AND l.type = ? AND NOT v.is_credit) AS invoiced,
	(SELECT COALESCE(SUM(l.quantity), 0) FROM invoice_lines l JOIN invoices v ON v.id = l.invoice_id
		WHERE l.item_id = i.id AND l.type = ? AND v.is_credit) AS credited,
	(SELECT COALESCE(SUM(CASE WHEN sh.is_return THEN -si.quantity ELSE si.quantity END), 0)
		FROM shipment_items si JOIN shipments sh ON sh.id = si.shipment_id
		WHERE si.sale_item_id = i.id AND sh.state IN ?) AS shipped,
	s.sample,
	s.released,
	(SELECT COALESCE(SUM(a.sold_quantity), 0) FROM stock_assignments a WHERE a.sale_item_id = i.id) AS assigned
FROM sale_items i
JOIN sales s ON s.id = i.sale_id
JOIN item_totals t ON t.id = i.id
WHERE EXISTS (SELECT 1 FROM stock_assignments a WHERE a.sale_item_id = i.id)
ORDER BY i.id`

// GormIntegritySource implements integrity.Source with aggregation queries
type GormIntegritySource struct {
	db *gorm.DB
}

// NewGormIntegritySource creates a new GormIntegritySource
func NewGormIntegritySource(db *gorm.DB) *GormIntegritySource {
	return &GormIntegritySource{db: db}
}

func stockableStates() []string {
	states := shipment.StockableStates()
	values := make([]string, 0, len(states))
	for _, s := range states {
		values = append(values, s.String())
	}
	return values
}

func decreaseReasons() []string {
	var values []string
	for _, r := range []stock.AdjustmentReason{
		stock.AdjustmentReasonFaulty, stock.AdjustmentReasonImproper, stock.AdjustmentReasonDebit,
		stock.AdjustmentReasonFound, stock.AdjustmentReasonCredit,
	} {
		if r.IsDecrease() {
			values = append(values, r.String())
		}
	}
	return values
}

// ItemSoldRows implements integrity.Source
func (s *GormIntegritySource) ItemSoldRows(ctx context.Context) ([]integrity.ItemSoldRow, error) {
	type itemSoldResult struct {
		SaleItemID  uuid.UUID
		SaleNumber  string
		Designation string
		Total       decimal.Decimal
		Invoiced    decimal.Decimal
		Credited    decimal.Decimal
		Shipped     decimal.Decimal
		Sample      bool
		Released    bool
		Assigned    decimal.Decimal
	}

	var results []itemSoldResult
	if err := s.db.WithContext(ctx).
		Raw(itemSoldSQL, invoice.LineTypeGood.String(), invoice.LineTypeGood.String(), stockableStates()).
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("aggregating item sold quantities: %w", err)
	}

	rows := make([]integrity.ItemSoldRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, integrity.ItemSoldRow{
			SaleItemID:  r.SaleItemID,
			SaleNumber:  r.SaleNumber,
			Designation: r.Designation,
			Total:       valueobject.NewQuantity(r.Total),
			Invoiced:    valueobject.NewQuantity(r.Invoiced),
			Credited:    valueobject.NewQuantity(r.Credited),
			Shipped:     valueobject.NewQuantity(r.Shipped),
			Sample:      r.Sample,
			Released:    r.Released,
			Assigned:    valueobject.NewQuantity(r.Assigned),
		})
	}
	return rows, nil
}

// ItemShippedRows implements integrity.Source
func (s *GormIntegritySource) ItemShippedRows(ctx context.Context) ([]integrity.ItemShippedRow, error) {
	type itemShippedResult struct {
		SaleItemID  uuid.UUID
		SaleNumber  string
		Designation string
		Shipped     decimal.Decimal
		Returned    decimal.Decimal
		Assigned    decimal.Decimal
	}

	states := stockableStates()
	var results []itemShippedResult
	if err := s.db.WithContext(ctx).Table("sale_items i").
		Select(`
			i.id AS sale_item_id,
			s.number AS sale_number,
			i.designation,
			(SELECT COALESCE(SUM(si.quantity), 0) FROM shipment_items si JOIN shipments sh ON sh.id = si.shipment_id
				WHERE si.sale_item_id = i.id AND NOT sh.is_return AND sh.state IN ?) AS shipped,
			(SELECT COALESCE(SUM(si.quantity), 0) FROM shipment_items si JOIN shipments sh ON sh.id = si.shipment_id
				WHERE si.sale_item_id = i.id AND sh.is_return AND sh.state IN ?) AS returned,
			(SELECT COALESCE(SUM(a.shipped_quantity), 0) FROM stock_assignments a WHERE a.sale_item_id = i.id) AS assigned
		`, states, states).
		Joins("JOIN sales s ON s.id = i.sale_id").
		Where("EXISTS (SELECT 1 FROM stock_assignments a WHERE a.sale_item_id = i.id)").
		Order("i.id").
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("aggregating item shipped quantities: %w", err)
	}

	rows := make([]integrity.ItemShippedRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, integrity.ItemShippedRow{
			SaleItemID:  r.SaleItemID,
			SaleNumber:  r.SaleNumber,
			Designation: r.Designation,
			Shipped:     valueobject.NewQuantity(r.Shipped),
			Returned:    valueobject.NewQuantity(r.Returned),
			Assigned:    valueobject.NewQuantity(r.Assigned),
		})
	}
	return rows, nil
}

// UnitRows implements integrity.Source
func (s *GormIntegritySource) UnitRows(ctx context.Context, field integrity.UnitField) ([]integrity.UnitRow, error) {
	var (
		selectSQL string
		args      []any
	)
	switch field {
	case integrity.UnitFieldSold:
		selectSQL = `u.id AS unit_id, u.product_id, u.sold_quantity AS stored,
			(SELECT COALESCE(SUM(a.sold_quantity), 0) FROM stock_assignments a WHERE a.stock_unit_id = u.id) AS computed`
	case integrity.UnitFieldShipped:
		selectSQL = `u.id AS unit_id, u.product_id, u.shipped_quantity AS stored,
			(SELECT COALESCE(SUM(a.shipped_quantity), 0) FROM stock_assignments a WHERE a.stock_unit_id = u.id) AS computed`
	case integrity.UnitFieldAdjusted:
		selectSQL = `u.id AS unit_id, u.product_id, u.adjusted_quantity AS stored,
			(SELECT COALESCE(SUM(CASE WHEN j.reason IN ? THEN -j.quantity ELSE j.quantity END), 0)
				FROM stock_adjustments j WHERE j.stock_unit_id = u.id) AS computed`
		args = append(args, decreaseReasons())
	default:
		return nil, fmt.Errorf("unknown stock unit field %q", field)
	}

	type unitResult struct {
		UnitID    uuid.UUID
		ProductID uuid.UUID
		Stored    decimal.Decimal
		Computed  decimal.Decimal
	}

	var results []unitResult
	if err := s.db.WithContext(ctx).Table("stock_units u").
		Select(selectSQL, args...).
		Order("u.id").
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("aggregating stock unit %s quantities: %w", field, err)
	}

	rows := make([]integrity.UnitRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, integrity.UnitRow{
			UnitID:    r.UnitID,
			ProductID: r.ProductID,
			Stored:    valueobject.NewQuantity(r.Stored),
			Computed:  valueobject.NewQuantity(r.Computed),
		})
	}
	return rows, nil
}

// AssignmentsOf implements integrity.Source
func (s *GormIntegritySource) AssignmentsOf(ctx context.Context, saleItemIDs []uuid.UUID) ([]integrity.AssignmentRow, error) {
	if len(saleItemIDs) == 0 {
		return nil, nil
	}

	type assignmentResult struct {
		ID                  uuid.UUID
		SaleItemID          uuid.UUID
		UnitID              uuid.UUID
		Sold                decimal.Decimal
		Shipped             decimal.Decimal
		UnitSupplied        bool
		UnitOrdered         decimal.Decimal
		UnitReceived        decimal.Decimal
		UnitAdjusted        decimal.Decimal
		UnitAssignedSold    decimal.Decimal
		UnitAssignedShipped decimal.Decimal
	}

	var results []assignmentResult
	if err := s.db.WithContext(ctx).Table("stock_assignments a").
		Select(`
			a.id,
			a.sale_item_id,
			a.stock_unit_id AS unit_id,
			a.sold_quantity AS sold,
			a.shipped_quantity AS shipped,
			u.supplied AS unit_supplied,
			u.ordered_quantity AS unit_ordered,
			u.received_quantity AS unit_received,
			u.adjusted_quantity AS unit_adjusted,
			(SELECT COALESCE(SUM(o.sold_quantity), 0) FROM stock_assignments o WHERE o.stock_unit_id = u.id) AS unit_assigned_sold,
			(SELECT COALESCE(SUM(o.shipped_quantity), 0) FROM stock_assignments o WHERE o.stock_unit_id = u.id) AS unit_assigned_shipped
		`).
		Joins("JOIN stock_units u ON u.id = a.stock_unit_id").
		Where("a.sale_item_id IN ?", saleItemIDs).
		Order("a.id").
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("loading stock assignments: %w", err)
	}

	rows := make([]integrity.AssignmentRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, integrity.AssignmentRow{
			ID:                  r.ID,
			SaleItemID:          r.SaleItemID,
			UnitID:              r.UnitID,
			Sold:                valueobject.NewQuantity(r.Sold),
			Shipped:             valueobject.NewQuantity(r.Shipped),
			UnitSupplied:        r.UnitSupplied,
			UnitOrdered:         valueobject.NewQuantity(r.UnitOrdered),
			UnitReceived:        valueobject.NewQuantity(r.UnitReceived),
			UnitAdjusted:        valueobject.NewQuantity(r.UnitAdjusted),
			UnitAssignedSold:    valueobject.NewQuantity(r.UnitAssignedSold),
			UnitAssignedShipped: valueobject.NewQuantity(r.UnitAssignedShipped),
		})
	}
	return rows, nil
}

// Violations implements integrity.Source
func (s *GormIntegritySource) Violations(ctx context.Context, assertion integrity.Assertion) ([]uuid.UUID, error) {
	type violationResult struct {
		ID uuid.UUID
	}

	var results []violationResult
	if err := s.db.WithContext(ctx).Raw(assertion.SQL()).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("checking %s: %w", assertion.Name, err)
	}

	ids := make([]uuid.UUID, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

var _ integrity.Source = (*GormIntegritySource)(nil)
