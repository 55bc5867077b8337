// Package presupuesto defines the line-item model returned by the upstream
// presupuesto_detalle service and the date range used to query it.
package presupuesto

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Row is one normalized presupuesto line item.
// The pair (ID, Item) identifies a row across overlapping upstream pages.
type Row struct {
	ID                     string  `json:"id"`
	Fecha                  string  `json:"fecha"`
	Comprobante            string  `json:"comprobante"`
	Estado                 string  `json:"estado"`
	ClienteID              string  `json:"cliente_id"`
	ClienteDescripcion     string  `json:"cliente_descripcion"`
	VendedorID             string  `json:"vendedor_id"`
	VendedorDescripcion    string  `json:"vendedor_descripcion"`
	StockOrigenID          string  `json:"stock_origen_id"`
	StockOrigenDescripcion string  `json:"stock_origen_descripcion"`
	Observaciones          string  `json:"observaciones"`
	ImporteTotal           float64 `json:"importe_total"`
	DescuentoPorcentaje    float64 `json:"descuento_porcentaje"`
	Item                   string  `json:"item"`
	ArticuloID             string  `json:"articulo_id"`
	ArticuloDescripcion    string  `json:"articulo_descripcion"`
	Cantidad               float64 `json:"cantidad"`
	Precio                 float64 `json:"precio"`
	DescuentoItem          float64 `json:"descuento_item"`
	ImporteItem            float64 `json:"importe_item"`
	Costo                  float64 `json:"costo"`
}

// Key returns the dedup key "<id>-<item>".
func (r Row) Key() string {
	return r.ID + "-" + r.Item
}

// FromRaw normalizes a decoded upstream object into a Row.
// Missing or null text fields become "", and numeric fields that cannot be
// parsed become 0. Numbers are expected as json.Number (decoder UseNumber)
// but float64 is accepted too.
func FromRaw(raw map[string]any) Row {
	return Row{
		ID:                     text(raw["id"]),
		Fecha:                  strings.TrimSpace(text(raw["fecha"])),
		Comprobante:            text(raw["comprobante"]),
		Estado:                 text(raw["estado"]),
		ClienteID:              text(raw["cliente_id"]),
		ClienteDescripcion:     text(raw["cliente_descripcion"]),
		VendedorID:             text(raw["vendedor_id"]),
		VendedorDescripcion:    text(raw["vendedor_descripcion"]),
		StockOrigenID:          text(raw["stock_origen_id"]),
		StockOrigenDescripcion: text(raw["stock_origen_descripcion"]),
		Observaciones:          text(raw["observaciones"]),
		ImporteTotal:           number(raw["importe_total"]),
		DescuentoPorcentaje:    number(raw["descuento_porcentaje"]),
		Item:                   text(raw["item"]),
		ArticuloID:             text(raw["articulo_id"]),
		ArticuloDescripcion:    text(raw["articulo_descripcion"]),
		Cantidad:               number(raw["cantidad"]),
		Precio:                 number(raw["precio"]),
		DescuentoItem:          number(raw["descuento_item"]),
		ImporteItem:            number(raw["importe_item"]),
		Costo:                  number(raw["costo"]),
	}
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func number(v any) float64 {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
