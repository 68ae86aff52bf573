package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giygas/dpd-api/dpdparser/entities"
)

func TestNewDocumentsProjection(t *testing.T) {
	p := product("1", "02200001")
	p.Enrichment = enriched("MARKETED")
	p.Ingredients = []entities.Ingredient{{Ingredient: "IBUPROFEN"}}

	docs := NewDocuments([]entities.DrugProduct{p}, []uint{42})

	if docs[0].ID != "42" {
		t.Errorf("ID = %q, want 42", docs[0].ID)
	}
	if docs[0].MonographDateParsable != "2021-03-04 00:00:00" {
		t.Errorf("MonographDateParsable = %q", docs[0].MonographDateParsable)
	}

	docs[0].Ingredients[0].Ingredient = "changed"
	if p.Ingredients[0].Ingredient != "IBUPROFEN" {
		t.Error("projection shares child slices with the canonical entity")
	}
}

func TestDocumentJSONShape(t *testing.T) {
	p := product("1", "02200001")
	docs := NewDocuments([]entities.DrugProduct{p}, nil)

	data, err := json.Marshal(docs[0])
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["_id"] != "" {
		t.Errorf("_id = %v, want empty text without storage", raw["_id"])
	}
	if raw["monograph_date_parsable"] != "" {
		t.Errorf("monograph_date_parsable = %v, want empty sentinel", raw["monograph_date_parsable"])
	}
	for _, key := range []string{"drug_code", "din", "current_status", "original_market_date", "uuid"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}

func TestDocumentsRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), SnapshotFile)
	p := product("1", "02200001")
	p.Enrichment = enriched("MARKETED")

	if err := WriteDocuments(path, NewDocuments([]entities.DrugProduct{p}, []uint{7})); err != nil {
		t.Fatalf("WriteDocuments failed: %v", err)
	}

	docs, err := ReadDocuments(path)
	if err != nil {
		t.Fatalf("ReadDocuments failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if got := docs[0].EnrichmentFields(); got != enriched("MARKETED") {
		t.Errorf("enrichment changed through the artifact:\n got %+v\nwant %+v", got, enriched("MARKETED"))
	}
}

func TestReadDocumentsMissingFile(t *testing.T) {
	_, err := ReadDocuments(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestReadDocumentsUnparsableDateBecomesSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), SnapshotFile)
	content := `[{"_id":"1","din":"02200001","current_status":"MARKETED","monograph_date":"soon","monograph_date_parsable":"soon"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := ReadDocuments(path)
	if err != nil {
		t.Fatalf("ReadDocuments failed: %v", err)
	}
	e := docs[0].EnrichmentFields()
	if e.MonographDateParsable.Valid {
		t.Error("expected the empty sentinel for an unparsable date")
	}
	if e.CurrentStatus != "MARKETED" {
		t.Errorf("CurrentStatus = %q", e.CurrentStatus)
	}
}

func TestWriteJSONLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := WriteJSON(filepath.Join(dir, "nested", TrademarksFile), []string{"a"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one file, got %d", len(entries))
	}
}
