package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Sternrassler/presupuesto-detalle/pkg/pagination"
	"github.com/Sternrassler/presupuesto-detalle/pkg/presupuesto"
)

func sampleResultJSON(t *testing.T) []byte {
	t.Helper()

	result := pagination.Result{
		Range: presupuesto.DateRange{Desde: "2024-01-01", Hasta: "2024-01-31"},
		Rows: []presupuesto.Row{
			{ID: "P000001", Item: "1", Fecha: "2024-01-05", ImporteItem: 150.5},
			{ID: "P000001", Item: "2", Fecha: "2024-01-05", ImporteItem: 49.5},
		},
		TotalReceived: 2,
		Pages:         1,
		Elapsed:       1500 * time.Millisecond,
	}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	return data
}

func TestNewEntry_FetchResult(t *testing.T) {
	data := sampleResultJSON(t)
	before := time.Now()
	entry := NewEntry(data, 10*time.Minute)

	if entry.CachedAt.Before(before) {
		t.Errorf("CachedAt = %v, want >= %v", entry.CachedAt, before)
	}
	if got := entry.Expires.Sub(entry.CachedAt); got != 10*time.Minute {
		t.Errorf("Expires - CachedAt = %v, want 10m", got)
	}

	var got pagination.Result
	if err := json.Unmarshal(entry.Data, &got); err != nil {
		t.Fatalf("entry data is not a fetch result: %v", err)
	}
	if got.Range.Desde != "2024-01-01" || got.Range.Hasta != "2024-01-31" {
		t.Errorf("Range = %+v", got.Range)
	}
	if len(got.Rows) != 2 || got.Rows[1].Key() != "P000001-2" {
		t.Errorf("Rows = %+v", got.Rows)
	}
	if got.TotalReceived != 2 || got.Pages != 1 {
		t.Errorf("TotalReceived = %d, Pages = %d", got.TotalReceived, got.Pages)
	}
}

func TestCacheEntry_Freshness(t *testing.T) {
	data := sampleResultJSON(t)

	tests := []struct {
		name        string
		ttl         time.Duration
		wantExpired bool
		wantMin     time.Duration
		wantMax     time.Duration
	}{
		{
			name:    "default result ttl",
			ttl:     5 * time.Minute,
			wantMin: 4*time.Minute + 59*time.Second,
			wantMax: 5 * time.Minute,
		},
		{
			name:    "long lived report",
			ttl:     time.Hour,
			wantMin: 59 * time.Minute,
			wantMax: time.Hour,
		},
		{
			name:        "stale result",
			ttl:         -time.Second,
			wantExpired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := NewEntry(data, tt.ttl)

			if got := entry.IsExpired(); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}
			got := entry.TTL()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TTL() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestCacheEntry_RoundTripKeepsExpiry(t *testing.T) {
	entry := NewEntry(sampleResultJSON(t), 2*time.Minute)

	encoded, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}

	var decoded CacheEntry
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	if !decoded.Expires.Equal(entry.Expires) {
		t.Errorf("Expires = %v, want %v", decoded.Expires, entry.Expires)
	}
	if decoded.IsExpired() {
		t.Error("decoded entry should still be fresh")
	}
	if !json.Valid(decoded.Data) {
		t.Errorf("Data = %s is not valid JSON", decoded.Data)
	}
}
