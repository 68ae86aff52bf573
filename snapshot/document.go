package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/giygas/dpd-api/dpdparser/entities"
)

// Artifact file names inside the artifacts directory.
const (
	AggregatedFile = "final.json"
	SnapshotFile   = "updated_dpd.json"
	TrademarksFile = "trademarks.json"
)

// Document is the serialized form of a product: the storage ID as text and
// the structured monograph date as text. It is derived from the canonical
// entity and never written back into it.
type Document struct {
	ID string `json:"_id"`
	entities.DrugProduct
	MonographDateParsable string `json:"monograph_date_parsable"`
}

// NewDocuments projects products into documents. ids holds the storage IDs
// in product order and may be shorter than products (or nil) when nothing
// was stored.
func NewDocuments(products []entities.DrugProduct, ids []uint) []Document {
	docs := make([]Document, len(products))
	for i, p := range products {
		doc := Document{
			DrugProduct:           p,
			MonographDateParsable: p.Enrichment.MonographDateParsable.String(),
		}
		doc.Ingredients = append([]entities.Ingredient(nil), p.Ingredients...)
		doc.Status = append([]entities.Status(nil), p.Status...)
		doc.ListIngredients = append([]string(nil), p.ListIngredients...)
		if i < len(ids) {
			doc.ID = strconv.FormatUint(uint64(ids[i]), 10)
		}
		docs[i] = doc
	}
	return docs
}

// EnrichmentFields returns the enrichment of the document with the text date
// read back into a structured one.
func (d Document) EnrichmentFields() entities.Enrichment {
	e := d.Enrichment
	e.MonographDateParsable = entities.ParseDateText(d.MonographDateParsable)
	return e
}

// ReadDocuments loads a snapshot artifact. The returned error wraps
// os.ErrNotExist when the file is absent.
func ReadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return docs, nil
}

// WriteDocuments writes a snapshot artifact.
func WriteDocuments(path string, docs []Document) error {
	if docs == nil {
		docs = []Document{}
	}
	return WriteJSON(path, docs)
}

// WriteJSON marshals v to path through a temporary file so readers never see
// a half-written artifact.
func WriteJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
