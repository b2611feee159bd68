package polycrypt

// Clone returns a deep copy of the record. Modifying the clone, including
// nested records and arrays, never affects the original.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]any, len(r.values)),
	}
	copy(out.keys, r.keys)
	for k, v := range r.values {
		out.values[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the container types a record may hold.
// Scalars are immutable and returned as is.
func cloneValue(v any) any {
	switch x := v.(type) {
	case *Record:
		return x.Clone()
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = cloneValue(elem)
		}
		return out
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			out[k] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether two records hold the same fields, in the same order,
// with equal values of the same type.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if len(r.keys) != len(other.keys) {
		return false
	}
	for i, k := range r.keys {
		if other.keys[i] != k {
			return false
		}
		if !equalValue(r.values[k], other.values[k]) {
			return false
		}
	}
	return true
}

// equalValue compares values by their canonical encoding, so []string{"a"}
// equals []any{"a"} and int(1) equals json.Number("1"), while
// json.Number("1.0") and json.Number("1") differ.
func equalValue(a, b any) bool {
	ea, errA := EncodeValue(a)
	eb, errB := EncodeValue(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ea) == string(eb)
}
