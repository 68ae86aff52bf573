package dpdparser

// Child is a child record together with the drug code it belongs to. The
// code is only used for indexing and never reaches the joined product.
type Child[T any] struct {
	DrugCode string
	Record   T
}

// Index maps a drug code to its child records, in file order. It is built
// once and only read afterwards.
type Index[T any] struct {
	buckets map[string][]T
}

// BuildIndex groups children by drug code, preserving input order inside
// each bucket.
func BuildIndex[T any](children []Child[T]) Index[T] {
	buckets := make(map[string][]T)
	for _, c := range children {
		buckets[c.DrugCode] = append(buckets[c.DrugCode], c.Record)
	}
	return Index[T]{buckets: buckets}
}

// Lookup returns the bucket for code. A missing code yields an empty slice.
func (idx Index[T]) Lookup(code string) []T {
	if bucket, ok := idx.buckets[code]; ok {
		out := make([]T, len(bucket))
		copy(out, bucket)
		return out
	}
	return []T{}
}

// First returns the first record of the bucket for code, if any.
func (idx Index[T]) First(code string) (T, bool) {
	var zero T
	bucket := idx.buckets[code]
	if len(bucket) == 0 {
		return zero, false
	}
	return bucket[0], true
}

// Len returns the number of distinct drug codes in the index.
func (idx Index[T]) Len() int {
	return len(idx.buckets)
}
