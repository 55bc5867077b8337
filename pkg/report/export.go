package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ItemColumns is the column contract of the items export.
var ItemColumns = []string{
	"fecha", "id", "comprobante", "estado", "cliente", "vendedor", "sucursal",
	"articulo", "cantidad", "precio", "ingreso", "costo", "margen", "pct",
}

// HeadColumns is the column contract of the presupuestos sheet.
var HeadColumns = []string{
	"fecha", "id", "comprobante", "cliente", "vendedor", "sucursal",
	"items", "ingreso", "costo", "margen", "pct",
}

func itemRecord(item Item) []string {
	return []string{
		item.Fecha,
		item.ID,
		item.Comprobante,
		item.Estado,
		item.Cliente,
		item.Vendedor,
		item.Sucursal,
		item.Articulo,
		formatNumber(item.Cantidad),
		formatNumber(item.Precio),
		formatNumber(item.Ingreso),
		formatNumber(item.CostoTotal),
		formatNumber(item.Margen),
		formatNumber(item.Pct),
	}
}

// WriteCSV writes the items export. Fields containing a quote, comma or
// newline are quoted with doubled inner quotes.
func WriteCSV(w io.Writer, items []Item) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ItemColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, item := range items {
		if err := cw.Write(itemRecord(item)); err != nil {
			return fmt.Errorf("write csv row %s: %w", item.Key(), err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes an Items sheet and a Presupuestos sheet.
func WriteXLSX(w io.Writer, items []Item, heads []Head) error {
	f := excelize.NewFile()
	defer f.Close()

	const itemsSheet = "Items"
	if err := f.SetSheetName("Sheet1", itemsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSheetRow(f, itemsSheet, 1, toCells(ItemColumns)); err != nil {
		return err
	}
	for i, item := range items {
		row := []any{
			item.Fecha, item.ID, item.Comprobante, item.Estado, item.Cliente,
			item.Vendedor, item.Sucursal, item.Articulo, item.Cantidad, item.Precio,
			item.Ingreso, item.CostoTotal, item.Margen, item.Pct,
		}
		if err := writeSheetRow(f, itemsSheet, i+2, row); err != nil {
			return err
		}
	}

	const headsSheet = "Presupuestos"
	if _, err := f.NewSheet(headsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := writeSheetRow(f, headsSheet, 1, toCells(HeadColumns)); err != nil {
		return err
	}
	for i, h := range heads {
		row := []any{
			h.Fecha, h.ID, h.Comprobante, h.Cliente, h.Vendedor, h.Sucursal,
			h.Items, h.Ingreso, h.Costo, h.Margen, h.Pct,
		}
		if err := writeSheetRow(f, headsSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSheetRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
