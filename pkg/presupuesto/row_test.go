package presupuesto

import (
	"encoding/json"
	"strings"
	"testing"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return raw
}

func TestFromRaw(t *testing.T) {
	raw := decode(t, `{
		"id": "A000123",
		"item": 2,
		"fecha": " 2024-01-01 ",
		"cliente_id": 55,
		"cliente_descripcion": "ACME",
		"vendedor_id": null,
		"cantidad": "3",
		"precio": 10.5,
		"importe_item": "31.5",
		"costo": "abc",
		"importe_total": 1e2
	}`)

	row := FromRaw(raw)

	if row.ID != "A000123" {
		t.Errorf("ID = %q, want A000123", row.ID)
	}
	if row.Item != "2" {
		t.Errorf("Item = %q, want 2", row.Item)
	}
	if row.Fecha != "2024-01-01" {
		t.Errorf("Fecha = %q, want trimmed date", row.Fecha)
	}
	if row.ClienteID != "55" {
		t.Errorf("ClienteID = %q, want 55", row.ClienteID)
	}
	if row.VendedorID != "" {
		t.Errorf("VendedorID = %q, want empty for null", row.VendedorID)
	}
	if row.Cantidad != 3 {
		t.Errorf("Cantidad = %v, want 3", row.Cantidad)
	}
	if row.Precio != 10.5 {
		t.Errorf("Precio = %v, want 10.5", row.Precio)
	}
	if row.ImporteItem != 31.5 {
		t.Errorf("ImporteItem = %v, want 31.5", row.ImporteItem)
	}
	if row.Costo != 0 {
		t.Errorf("Costo = %v, want 0 for non-numeric", row.Costo)
	}
	if row.ImporteTotal != 100 {
		t.Errorf("ImporteTotal = %v, want 100", row.ImporteTotal)
	}
	if row.Observaciones != "" {
		t.Errorf("Observaciones = %q, want empty for missing", row.Observaciones)
	}
}

func TestRow_Key(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want string
	}{
		{name: "id and item", row: Row{ID: "F000010", Item: "3"}, want: "F000010-3"},
		{name: "missing item", row: Row{ID: "F000010"}, want: "F000010-"},
		{name: "empty row", row: Row{}, want: "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.row.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNumber_NonFinite(t *testing.T) {
	if got := number("Infinity"); got != 0 {
		t.Errorf("number(Infinity) = %v, want 0", got)
	}
	if got := number(true); got != 1 {
		t.Errorf("number(true) = %v, want 1", got)
	}
}
