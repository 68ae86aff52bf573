package dpdparser

import (
	"reflect"
	"testing"
)

func TestBuildIndexPreservesOrder(t *testing.T) {
	idx := BuildIndex([]Child[string]{
		{DrugCode: "1", Record: "a"},
		{DrugCode: "2", Record: "x"},
		{DrugCode: "1", Record: "b"},
		{DrugCode: "1", Record: "c"},
	})

	if got := idx.Lookup("1"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Lookup(1) = %v", got)
	}
	if got := idx.Lookup("2"); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("Lookup(2) = %v", got)
	}
	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", idx.Len())
	}
}

func TestIndexMissingKey(t *testing.T) {
	idx := BuildIndex([]Child[int]{{DrugCode: "1", Record: 1}})

	got := idx.Lookup("404")
	if got == nil || len(got) != 0 {
		t.Errorf("Lookup of a missing key should be an empty slice, got %#v", got)
	}

	if _, ok := idx.First("404"); ok {
		t.Error("First of a missing key should report false")
	}
}

func TestIndexLookupDoesNotExposeBucket(t *testing.T) {
	idx := BuildIndex([]Child[string]{{DrugCode: "1", Record: "a"}})

	bucket := idx.Lookup("1")
	bucket[0] = "changed"

	if first, _ := idx.First("1"); first != "a" {
		t.Errorf("index was mutated through a lookup result: %q", first)
	}
}
