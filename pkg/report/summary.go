package report

import (
	"sort"

	"github.com/Sternrassler/presupuesto-detalle/pkg/presupuesto"
	"github.com/shopspring/decimal"
)

// Fallback labels for rows without id and description.
const (
	SinVendedor = "SIN VENDEDOR"
	SinCliente  = "SIN CLIENTE"
	SinSucursal = "SIN SUCURSAL"
	SinArticulo = "SIN ARTÍCULO"
	SinID       = "(sin id)"
)

// Item is a row enriched with display labels and margin figures.
type Item struct {
	presupuesto.Row

	Vendedor string `json:"vendedor"`
	Cliente  string `json:"cliente"`
	Sucursal string `json:"sucursal"`
	Articulo string `json:"articulo"`

	Ingreso    float64 `json:"_ingreso"`
	CostoTotal float64 `json:"_costo"`
	Margen     float64 `json:"_margen"`
	Pct        float64 `json:"_pct"`
}

// Enrich computes labels and margins. Costo is a unit cost, so the item cost
// is costo*cantidad.
func Enrich(row presupuesto.Row) Item {
	ingreso := decimal.NewFromFloat(row.ImporteItem)
	costo := decimal.NewFromFloat(row.Costo).Mul(decimal.NewFromFloat(row.Cantidad))
	margen := ingreso.Sub(costo)

	return Item{
		Row:        row,
		Vendedor:   firstNonEmpty(row.VendedorDescripcion, row.VendedorID, SinVendedor),
		Cliente:    firstNonEmpty(row.ClienteDescripcion, row.ClienteID, SinCliente),
		Sucursal:   firstNonEmpty(row.StockOrigenDescripcion, row.StockOrigenID, SinSucursal),
		Articulo:   firstNonEmpty(row.ArticuloDescripcion, row.ArticuloID, SinArticulo),
		Ingreso:    ingreso.InexactFloat64(),
		CostoTotal: costo.InexactFloat64(),
		Margen:     margen.InexactFloat64(),
		Pct:        ratio(margen, ingreso),
	}
}

// EnrichAll enriches every row.
func EnrichAll(rows []presupuesto.Row) []Item {
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, Enrich(row))
	}
	return items
}

// Head groups the items of one presupuesto.
type Head struct {
	ID          string  `json:"id"`
	Fecha       string  `json:"fecha"`
	Comprobante string  `json:"comprobante"`
	Estado      string  `json:"estado"`
	Cliente     string  `json:"cliente"`
	Vendedor    string  `json:"vendedor"`
	Sucursal    string  `json:"sucursal"`
	Items       int     `json:"items"`
	Ingreso     float64 `json:"ingreso"`
	Costo       float64 `json:"costo"`
	Margen      float64 `json:"margen"`
	Pct         float64 `json:"pct"`
	Rows        []Item  `json:"rows"`
}

// BuildHeads groups items by presupuesto id in first-seen order. Header
// fields come from the first item of each id.
func BuildHeads(items []Item) []Head {
	index := make(map[string]int)
	heads := make([]Head, 0)
	sums := make([]*ledger, 0)

	for _, item := range items {
		id := item.ID
		if id == "" {
			id = SinID
		}

		i, ok := index[id]
		if !ok {
			i = len(heads)
			index[id] = i
			heads = append(heads, Head{
				ID:          id,
				Fecha:       item.Fecha,
				Comprobante: item.Comprobante,
				Estado:      item.Estado,
				Cliente:     item.Cliente,
				Vendedor:    item.Vendedor,
				Sucursal:    item.Sucursal,
			})
			sums = append(sums, newLedger())
		}

		heads[i].Items++
		heads[i].Rows = append(heads[i].Rows, item)
		sums[i].add(item)
	}

	for i := range heads {
		heads[i].Ingreso, heads[i].Costo, heads[i].Margen, heads[i].Pct = sums[i].values()
	}
	return heads
}

// Aggregate summarizes items sharing a key (vendedor, cliente, ...).
type Aggregate struct {
	Key     string  `json:"key"`
	Presu   int     `json:"presu"`
	Items   int     `json:"items"`
	Ingreso float64 `json:"ingreso"`
	Costo   float64 `json:"costo"`
	Margen  float64 `json:"margen"`
	Pct     float64 `json:"pct"`
}

// AggregateBy groups items by key in first-seen order. Presu counts
// distinct presupuesto ids.
func AggregateBy(items []Item, key func(Item) string) []Aggregate {
	index := make(map[string]int)
	aggs := make([]Aggregate, 0)
	sums := make([]*ledger, 0)
	ids := make([]map[string]struct{}, 0)

	for _, item := range items {
		k := key(item)
		i, ok := index[k]
		if !ok {
			i = len(aggs)
			index[k] = i
			aggs = append(aggs, Aggregate{Key: k})
			sums = append(sums, newLedger())
			ids = append(ids, make(map[string]struct{}))
		}

		aggs[i].Items++
		sums[i].add(item)
		ids[i][item.ID] = struct{}{}
	}

	for i := range aggs {
		aggs[i].Presu = len(ids[i])
		aggs[i].Ingreso, aggs[i].Costo, aggs[i].Margen, aggs[i].Pct = sums[i].values()
	}
	return aggs
}

// TopBy returns the n aggregates with the highest field value. n <= 0
// returns all of them, sorted.
func TopBy(aggs []Aggregate, field func(Aggregate) float64, n int) []Aggregate {
	out := make([]Aggregate, len(aggs))
	copy(out, aggs)
	sort.SliceStable(out, func(i, j int) bool {
		return field(out[i]) > field(out[j])
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// KPIs are the headline figures of the dashboard.
type KPIs struct {
	Ingresos       float64 `json:"ingresos"`
	Costos         float64 `json:"costos"`
	Margen         float64 `json:"margen"`
	MargenPct      float64 `json:"margenPct"`
	Presupuestos   int     `json:"presupuestos"`
	TicketPromedio float64 `json:"ticketPromedio"`
}

// BuildKPIs sums ingreso and cost over items.
func BuildKPIs(items []Item) KPIs {
	s := newLedger()
	ids := make(map[string]struct{})
	for _, item := range items {
		s.add(item)
		ids[item.ID] = struct{}{}
	}

	ingresos, costos, margen, pct := s.values()

	divisor := len(ids)
	if divisor == 0 {
		divisor = 1
	}

	return KPIs{
		Ingresos:       ingresos,
		Costos:         costos,
		Margen:         margen,
		MargenPct:      pct,
		Presupuestos:   len(ids),
		TicketPromedio: s.ingreso.Div(decimal.NewFromInt(int64(divisor))).InexactFloat64(),
	}
}

// Summary is the payload of the resumen endpoint.
type Summary struct {
	KPIs       KPIs        `json:"kpis"`
	Heads      []Head      `json:"heads"`
	Vendedores []Aggregate `json:"vendedores"`
	Clientes   []Aggregate `json:"clientes"`
	Sucursales []Aggregate `json:"sucursales"`
	Articulos  []Aggregate `json:"articulos"`
}

// Summarize builds every dashboard view over rows. Aggregates are ordered
// by ingreso, highest first.
func Summarize(rows []presupuesto.Row) Summary {
	items := EnrichAll(rows)
	byIngreso := func(a Aggregate) float64 { return a.Ingreso }

	return Summary{
		KPIs:       BuildKPIs(items),
		Heads:      BuildHeads(items),
		Vendedores: TopBy(AggregateBy(items, func(i Item) string { return i.Vendedor }), byIngreso, 0),
		Clientes:   TopBy(AggregateBy(items, func(i Item) string { return i.Cliente }), byIngreso, 0),
		Sucursales: TopBy(AggregateBy(items, func(i Item) string { return i.Sucursal }), byIngreso, 0),
		Articulos:  TopBy(AggregateBy(items, func(i Item) string { return i.Articulo }), byIngreso, 0),
	}
}

// ledger accumulates ingreso and cost without float drift.
type ledger struct {
	ingreso decimal.Decimal
	costo   decimal.Decimal
}

func newLedger() *ledger {
	return &ledger{ingreso: decimal.Zero, costo: decimal.Zero}
}

func (s *ledger) add(item Item) {
	s.ingreso = s.ingreso.Add(decimal.NewFromFloat(item.Ingreso))
	s.costo = s.costo.Add(decimal.NewFromFloat(item.CostoTotal))
}

func (s *ledger) values() (ingreso, costo, margen, pct float64) {
	m := s.ingreso.Sub(s.costo)
	return s.ingreso.InexactFloat64(), s.costo.InexactFloat64(), m.InexactFloat64(), ratio(m, s.ingreso)
}

// ratio returns num/den, or 0 when den is not positive.
func ratio(num, den decimal.Decimal) float64 {
	if !den.IsPositive() {
		return 0
	}
	return num.DivRound(den, 6).InexactFloat64()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
