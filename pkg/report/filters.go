package report

import (
	"sort"
	"strings"

	"github.com/Sternrassler/presupuesto-detalle/pkg/presupuesto"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// EmptyOption selects rows without id and description for a dimension.
const EmptyOption = "__empty__"

// Filters are the local row filters. Empty fields match everything.
type Filters struct {
	Vendedor string `json:"vendedor"`
	Estado   string `json:"estado"`
	Cliente  string `json:"cliente"`
	Articulo string `json:"articulo"`
}

// ApplyFilters keeps the rows matching every set filter. Vendedor and
// cliente match the exact id or a case-insensitive description substring;
// articulo matches a case-insensitive substring of id or description.
// Estado is an upstream filter and is not applied here.
func ApplyFilters(rows []presupuesto.Row, f Filters) []presupuesto.Row {
	if f.Vendedor == "" && f.Cliente == "" && f.Articulo == "" {
		return rows
	}

	out := make([]presupuesto.Row, 0, len(rows))
	for _, row := range rows {
		if f.Vendedor != "" && !matchParty(row.VendedorID, row.VendedorDescripcion, f.Vendedor) {
			continue
		}
		if f.Cliente != "" && !matchParty(row.ClienteID, row.ClienteDescripcion, f.Cliente) {
			continue
		}
		if f.Articulo != "" && !matchArticulo(row.ArticuloID, row.ArticuloDescripcion, f.Articulo) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func matchParty(id, desc, want string) bool {
	id = strings.TrimSpace(id)
	if want == EmptyOption {
		return id == "" && strings.TrimSpace(desc) == ""
	}
	return id == want || strings.Contains(strings.ToLower(desc), strings.ToLower(want))
}

func matchArticulo(id, desc, want string) bool {
	if want == EmptyOption {
		return strings.TrimSpace(id) == "" && strings.TrimSpace(desc) == ""
	}
	w := strings.ToLower(want)
	return strings.Contains(strings.ToLower(id), w) || strings.Contains(strings.ToLower(desc), w)
}

// Option is one entry of a filter dropdown.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FilterOptions lists the selectable values found in a row set.
type FilterOptions struct {
	Vendedores []Option `json:"vendedores"`
	Clientes   []Option `json:"clientes"`
	Articulos  []Option `json:"articulos"`
}

// optionSet keeps the first option registered under each key.
type optionSet struct {
	keys    []string
	options map[string]Option
}

func newOptionSet() *optionSet {
	return &optionSet{options: make(map[string]Option)}
}

func (s *optionSet) add(key string, opt Option) {
	if _, ok := s.options[key]; ok {
		return
	}
	s.keys = append(s.keys, key)
	s.options[key] = opt
}

func (s *optionSet) sorted() []Option {
	out := make([]Option, 0, len(s.keys))
	for _, key := range s.keys {
		out = append(out, s.options[key])
	}

	// Base strength: case and accents are ignored, as in the dashboard.
	col := collate.New(language.Spanish, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(out, func(i, j int) bool {
		return col.CompareString(out[i].Label, out[j].Label) < 0
	})
	return out
}

// BuildFilterOptions derives vendedor, cliente and articulo options.
func BuildFilterOptions(rows []presupuesto.Row) FilterOptions {
	vendedores := newOptionSet()
	clientes := newOptionSet()
	articulos := newOptionSet()
	var emptyVendedor, emptyCliente, emptyArticulo bool

	for _, row := range rows {
		if !addParty(vendedores, row.VendedorID, row.VendedorDescripcion, "Vendedor") {
			emptyVendedor = true
		}
		if !addParty(clientes, row.ClienteID, row.ClienteDescripcion, "Cliente") {
			emptyCliente = true
		}

		id := strings.TrimSpace(row.ArticuloID)
		desc := strings.TrimSpace(row.ArticuloDescripcion)
		if id != "" {
			articulos.add(id, Option{Value: id, Label: label(id, desc, "Artículo")})
		}
		if desc != "" {
			articulos.add("desc:"+strings.ToLower(desc), Option{Value: desc, Label: desc})
		}
		if id == "" && desc == "" {
			emptyArticulo = true
		}
	}

	if emptyVendedor {
		vendedores.add(EmptyOption, Option{Value: EmptyOption, Label: "Sin vendedor"})
	}
	if emptyCliente {
		clientes.add(EmptyOption, Option{Value: EmptyOption, Label: "Sin cliente"})
	}
	if emptyArticulo {
		articulos.add(EmptyOption, Option{Value: EmptyOption, Label: "Sin artículo"})
	}

	return FilterOptions{
		Vendedores: vendedores.sorted(),
		Clientes:   clientes.sorted(),
		Articulos:  articulos.sorted(),
	}
}

// addParty registers a vendedor/cliente option and reports false when the
// row has neither id nor description.
func addParty(set *optionSet, id, desc, noun string) bool {
	id = strings.TrimSpace(id)
	desc = strings.TrimSpace(desc)

	switch {
	case id != "":
		set.add(id, Option{Value: id, Label: label(id, desc, noun)})
	case desc != "":
		set.add("desc:"+strings.ToLower(desc), Option{Value: desc, Label: desc})
	default:
		return false
	}
	return true
}

func label(id, desc, noun string) string {
	if desc != "" {
		return desc + " (#" + id + ")"
	}
	return noun + " #" + id
}
