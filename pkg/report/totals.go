// Package report builds the dashboard views over fetched presupuesto rows:
// totals, local filters, filter options, per-presupuesto heads, group
// aggregates, KPIs and exports.
package report

import (
	"strings"

	"github.com/Sternrassler/presupuesto-detalle/pkg/presupuesto"
	"github.com/shopspring/decimal"
)

// Totals summarizes a row set.
type Totals struct {
	Presupuestos      int     `json:"presupuestos"`
	Items             int     `json:"items"`
	TotalImporteTotal float64 `json:"totalImporteTotal"`
	TotalImporteItem  float64 `json:"totalImporteItem"`
	TotalCantidad     float64 `json:"totalCantidad"`
}

// BuildTotals counts distinct presupuestos and sums amounts. ImporteTotal is
// a per-presupuesto figure repeated on every item, so it is added once per id.
func BuildTotals(rows []presupuesto.Row) Totals {
	seen := make(map[string]struct{})
	importeTotal := decimal.Zero
	importeItem := decimal.Zero
	cantidad := decimal.Zero

	for _, row := range rows {
		id := strings.TrimSpace(row.ID)
		if id != "" {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				importeTotal = importeTotal.Add(decimal.NewFromFloat(row.ImporteTotal))
			}
		}
		importeItem = importeItem.Add(decimal.NewFromFloat(row.ImporteItem))
		cantidad = cantidad.Add(decimal.NewFromFloat(row.Cantidad))
	}

	return Totals{
		Presupuestos:      len(seen),
		Items:             len(rows),
		TotalImporteTotal: importeTotal.InexactFloat64(),
		TotalImporteItem:  importeItem.InexactFloat64(),
		TotalCantidad:     cantidad.InexactFloat64(),
	}
}
