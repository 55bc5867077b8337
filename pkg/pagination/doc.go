// Package pagination retrieves the complete presupuesto_detalle result set
// from an upstream whose "desde=<lastId>" cursor cannot be trusted.
//
// The upstream is known to misbehave in two ways: the last row of page N can
// come back as the first row of page N+1 (the cursor is passed through
// without advancing), and a page identical to an earlier one can be served
// again. The fetcher routes around both:
//
//   - Rows are deduplicated by (id, item) and filtered to the requested
//     date range, so repeated or out-of-range rows never reach the result.
//   - A page shorter than the requested size ends pagination.
//   - Before a page's last id is used as the next cursor, a probe request
//     checks that it actually advances. When it does not, the trailing digits
//     of the id are incremented ("A000123" -> "A000124") and that value is
//     used instead. Ids without trailing digits are reused unchanged.
//   - MaxPages bounds the number of primary page fetches no matter what the
//     upstream does.
//
// Requests are strictly sequential: each probe depends on the page before it.
// All loop state lives in a per-call value, so concurrent calls share nothing.
//
// Example usage:
//
//	upstream, _ := client.New(client.DefaultConfig())
//	fetcher := pagination.NewFetcher(upstream, pagination.DefaultConfig())
//	result, err := fetcher.Fetch(ctx, pagination.Request{
//		FechaDesde: "2024-01-01",
//		FechaHasta: "2024-01-31",
//		Extra:      map[string]string{"vendedor": "12"},
//	})
package pagination
