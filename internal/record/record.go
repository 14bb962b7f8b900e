package record

// Record is one inventoried item: an ordered mapping of field name to Value.
type Record struct {
	keys []string
	vals map[string]Value
}

// New creates an empty record.
func New() Record {
	return Record{vals: make(map[string]Value)}
}

// Set stores a field. Overwriting keeps the field's original position.
func (r *Record) Set(name string, v Value) {
	if r.vals == nil {
		r.vals = make(map[string]Value)
	}
	if _, ok := r.vals[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.vals[name] = v
}

// Get returns the value of a field and whether it is present.
func (r Record) Get(name string) (Value, bool) {
	v, ok := r.vals[name]
	return v, ok
}

// Has reports whether the field is present.
func (r Record) Has(name string) bool {
	_, ok := r.vals[name]
	return ok
}

// Fields returns field names in insertion order.
func (r Record) Fields() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.keys) }

// Clone returns a deep copy.
func (r Record) Clone() Record {
	c := Record{
		keys: make([]string, len(r.keys)),
		vals: make(map[string]Value, len(r.vals)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.vals {
		c.vals[k] = v
	}
	return c
}

// Reorder returns a copy whose fields follow order. Fields not named in
// order are dropped, names in order missing from r are filled by fill.
func (r Record) Reorder(order []string, fill func(name string) Value) Record {
	c := Record{
		keys: make([]string, 0, len(order)),
		vals: make(map[string]Value, len(order)),
	}
	for _, name := range order {
		v, ok := r.vals[name]
		if !ok {
			v = fill(name)
		}
		c.keys = append(c.keys, name)
		c.vals[name] = v
	}
	return c
}

// Prepend returns a copy with the given fields placed first, in order.
// Existing values for those fields are replaced.
func (r Record) Prepend(names []string, values []Value) Record {
	c := New()
	for i, name := range names {
		c.Set(name, values[i])
	}
	for _, name := range r.keys {
		if c.Has(name) {
			continue
		}
		c.Set(name, r.vals[name])
	}
	return c
}

// Equal reports whether two records have the same fields in the same order
// with equal values.
func (r Record) Equal(o Record) bool {
	if len(r.keys) != len(o.keys) {
		return false
	}
	for i, k := range r.keys {
		if o.keys[i] != k {
			return false
		}
		if !r.vals[k].Equal(o.vals[k]) {
			return false
		}
	}
	return true
}

// Text returns the string form of a field, empty when absent or null.
func (r Record) Text(name string) string {
	v, ok := r.vals[name]
	if !ok {
		return ""
	}
	return v.String()
}

// Float returns the numeric form of a field, 0 when absent or non-numeric.
func (r Record) Float(name string) float64 {
	v, ok := r.vals[name]
	if !ok {
		return 0
	}
	f, _ := v.Float()
	return f
}
