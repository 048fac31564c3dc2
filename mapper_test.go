package stripemirror

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedMapper(t *testing.T) *Mapper {
	t.Helper()
	m := NewMapper(t.TempDir(), nil)
	m.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }
	return m
}

func TestMapper_AddAndLookup(t *testing.T) {
	m := fixedMapper(t)

	if err := m.AddMapping(KindProducts, "prod_A", "prod_tA"); err != nil {
		t.Fatalf("AddMapping() error = %v", err)
	}
	if got, ok := m.TestID(KindProducts, "prod_A"); !ok || got != "prod_tA" {
		t.Errorf("TestID() = %q, %v", got, ok)
	}
	if got, ok := m.ProdID(KindProducts, "prod_tA"); !ok || got != "prod_A" {
		t.Errorf("ProdID() = %q, %v", got, ok)
	}
	if _, ok := m.TestID(KindPrices, "prod_A"); ok {
		t.Error("mapping leaked across kinds")
	}

	// Overwrite.
	_ = m.AddMapping(KindProducts, "prod_A", "prod_tB")
	if got, _ := m.TestID(KindProducts, "prod_A"); got != "prod_tB" {
		t.Errorf("TestID() after overwrite = %q, want prod_tB", got)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMapper_AddMapping_UnknownKind(t *testing.T) {
	m := fixedMapper(t)
	err := m.AddMapping(Kind("customers"), "cus_1", "cus_2")
	if !errors.Is(err, ErrUnknownResourceKind) {
		t.Errorf("AddMapping() error = %v, want ErrUnknownResourceKind", err)
	}
}

func TestMapper_Stats(t *testing.T) {
	m := fixedMapper(t)
	m.IncrementStat(KindProducts, StatCreated)
	m.IncrementStat(KindProducts, StatCreated)
	m.IncrementStat(KindPrices, StatErrors)
	m.IncrementStat(KindCoupons, StatUpdated)

	// Ignored.
	m.IncrementStat(Kind("customers"), StatCreated)
	m.IncrementStat(KindProducts, Stat("skipped"))

	if got := m.KindStats(KindProducts); got != (Counters{Created: 2}) {
		t.Errorf("KindStats(products) = %+v", got)
	}
	if got := m.Summary(); got != (Counters{Created: 2, Updated: 1, Errors: 1}) {
		t.Errorf("Summary() = %+v", got)
	}
	if len(m.Stats()) != len(AllKinds()) {
		t.Errorf("Stats() has %d kinds, want %d", len(m.Stats()), len(AllKinds()))
	}

	m.ResetStats()
	if got := m.Summary(); got != (Counters{}) {
		t.Errorf("Summary() after reset = %+v", got)
	}
}

func TestMapper_SaveLoadRoundTrip(t *testing.T) {
	m := fixedMapper(t)
	_ = m.AddMapping(KindTaxRates, "txr_1", "txr_t1")
	_ = m.AddMapping(KindCoupons, "SPRING", "test_SPRING")
	m.IncrementStat(KindCoupons, StatCreated)

	path, err := m.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Base(path) != "mapping_20240309_140507.json" {
		t.Errorf("snapshot name = %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if snap.Timestamp != "2024-03-09T14:05:07Z" {
		t.Errorf("timestamp = %q", snap.Timestamp)
	}
	if snap.Summary.Created != 1 {
		t.Errorf("summary = %+v", snap.Summary)
	}
	if snap.Mappings[KindCoupons]["SPRING"] != "test_SPRING" {
		t.Errorf("mappings = %v", snap.Mappings)
	}

	restored := NewMapper(t.TempDir(), nil)
	_ = restored.AddMapping(KindProducts, "stale", "stale")
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := restored.TestID(KindProducts, "stale"); ok {
		t.Error("Load() kept entries that were not in the snapshot")
	}
	if got, _ := restored.TestID(KindTaxRates, "txr_1"); got != "txr_t1" {
		t.Errorf("restored TestID = %q", got)
	}
	if got := restored.KindStats(KindCoupons); got != (Counters{Created: 1}) {
		t.Errorf("restored stats = %+v", got)
	}
}

func TestMapper_SaveNeverOverwrites(t *testing.T) {
	m := fixedMapper(t)

	first, err := m.Save()
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Save()
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatalf("second Save() reused %s", first)
	}
	if filepath.Base(second) != "mapping_20240309_140507_1.json" {
		t.Errorf("second snapshot = %s", filepath.Base(second))
	}
}

func TestMapper_LoadMissing(t *testing.T) {
	m := fixedMapper(t)
	err := m.Load(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Load() error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestMapper_MappingsIsACopy(t *testing.T) {
	m := fixedMapper(t)
	_ = m.AddMapping(KindProducts, "prod_A", "prod_tA")

	cp := m.Mappings()
	cp[KindProducts]["prod_A"] = "changed"
	if got, _ := m.TestID(KindProducts, "prod_A"); got != "prod_tA" {
		t.Errorf("Mappings() exposed internal state, TestID = %q", got)
	}
}
