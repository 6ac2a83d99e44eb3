// Package console renders integrity reports and sale quantity ledgers for terminals and
// spreadsheets.
package console

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/erp/fulfillment/internal/application/fulfillment"
	appintegrity "github.com/erp/fulfillment/internal/application/integrity"
	"github.com/erp/fulfillment/internal/domain/shared/valueobject"
	"github.com/erp/fulfillment/internal/domain/shipment"
)

const (
	statusOK       = "OK"
	statusMismatch = "MISMATCH"
	statusFixed    = "FIXED"
	statusFailed   = "FAILED"
)

// quantityHeaders are the ledger columns of a quantity map, in display order
var quantityHeaders = []string{
	"Item ID", "Designation", "Total", "Invoiced", "Credited", "Sold",
	"Shipped", "Returned", "Shippable", "Returnable", "Available",
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// checkerStatus summarizes a checker outcome in one word
func checkerStatus(c appintegrity.CheckerReport) string {
	switch {
	case c.Err != nil:
		return statusFailed
	case len(c.Results) == 0:
		return statusOK
	case c.Fixed > 0:
		return statusFixed
	default:
		return statusMismatch
	}
}

// WriteReport writes an integrity report as text tables: a summary of every checker, then
// the offending rows of each checker that found some.
func WriteReport(w io.Writer, report *appintegrity.Report) error {
	if _, err := fmt.Fprintf(w, "Integrity batch %s (fix: %t, %s)\n\n",
		report.BatchID, report.Fix, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)); err != nil {
		return err
	}

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "CHECKER\tSTATUS\tMISMATCHES\tFIXES")
	for _, c := range report.Checkers {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", c.Name, checkerStatus(c), len(c.Results), c.Fixed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, c := range report.Checkers {
		if c.Err != nil {
			if _, err := fmt.Fprintf(w, "\n%s: %v\n", c.Title, c.Err); err != nil {
				return err
			}
		}
		if len(c.Results) == 0 {
			continue
		}
		if err := writeResults(w, c); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\n%d mismatches, %d fixes, %d stock units changed\n",
		report.Mismatches(), report.Fixes, len(report.UnitIDs))
	return err
}

func writeResults(w io.Writer, c appintegrity.CheckerReport) error {
	if _, err := fmt.Fprintf(w, "\n%s\n", c.Title); err != nil {
		return err
	}
	tw := newTabWriter(w)
	labels := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		labels[i] = strings.ToUpper(col.Label)
	}
	fmt.Fprintln(tw, strings.Join(labels, "\t"))
	for _, r := range c.Results {
		values := make([]string, len(c.Columns))
		for i, col := range c.Columns {
			values[i] = r.Values[col.Key]
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, a := range c.Actions {
		if _, err := fmt.Fprintf(w, "  fix: %s\n", a); err != nil {
			return err
		}
	}
	return nil
}

// WriteQuantityMap writes the ledger of every item of a sale as a text table
func WriteQuantityMap(w io.Writer, qm *fulfillment.QuantityMap) error {
	if _, err := fmt.Fprintf(w, "Sale %s (%s)\n\n", qm.SaleNumber, qm.SaleID); err != nil {
		return err
	}
	tw := newTabWriter(w)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(quantityHeaders, "\t")))
	for _, item := range qm.Items {
		values := []string{item.ItemID.String(), item.Designation}
		for _, q := range itemQuantities(item) {
			values = append(values, q.String())
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	return tw.Flush()
}

// WriteRemainingList writes what a sale still owes after a shipment
func WriteRemainingList(w io.Writer, list *shipment.RemainingList) error {
	if list.IsEmpty() {
		_, err := fmt.Fprintln(w, "Nothing remains to ship")
		return err
	}
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "ITEM ID\tDESIGNATION\tQUANTITY\tETA")
	for _, e := range list.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.SaleItemID, e.Designation, e.Quantity, formatDate(e.EstimatedDateOfArrival))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if list.EstimatedShippingDate != nil {
		_, err := fmt.Fprintf(w, "Estimated shipping date: %s\n", formatDate(list.EstimatedShippingDate))
		return err
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

// itemQuantities returns the quantity columns of an item in header order
func itemQuantities(item fulfillment.ItemQuantities) []valueobject.Quantity {
	return []valueobject.Quantity{
		item.Total, item.Invoiced, item.Credited, item.Sold,
		item.Shipped, item.Returned, item.Shippable, item.Returnable, item.Available,
	}
}
