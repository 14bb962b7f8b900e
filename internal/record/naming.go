package record

import (
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Fields every record carries, stamped by the collector.
const (
	FieldAccountID    = "account_id"
	FieldAccountAlias = "account_alias"
	FieldRegion       = "region"
	FieldResourceID   = "resource_id"
	FieldName         = "name"
)

// Prefixes that mark dynamic fields.
const (
	TagPrefix   = "tag:"
	ClassPrefix = "class:"
)

// Placeholder replaces characters that may not appear in a dynamic field name.
const Placeholder = '_'

// Unit is a capacity unit reported for every sized item.
type Unit string

const (
	GiB Unit = "gib"
	TiB Unit = "tib"
	GB  Unit = "gb"
	TB  Unit = "tb"
)

// Units lists the reported units in column order.
var Units = []Unit{GiB, TiB, GB, TB}

var measurePattern = regexp.MustCompile(`(_gib|_tib|_gb|_tb|_mib|_bytes|_count)$`)

// IsMeasure reports whether a field holds a size or a count and therefore
// defaults to zero rather than null. Tag fields are never measures.
func IsMeasure(name string) bool {
	return !strings.HasPrefix(name, TagPrefix) && measurePattern.MatchString(name)
}

// IsDynamic reports whether a field is a tag or storage-class field.
func IsDynamic(name string) bool {
	return strings.HasPrefix(name, TagPrefix) || strings.HasPrefix(name, ClassPrefix)
}

// Sanitize replaces every character that is not an ASCII letter or digit
// with the placeholder.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(Placeholder)
		}
	}
	return b.String()
}

// TagField returns the field name for a user tag key.
func TagField(key string) string {
	return TagPrefix + Sanitize(key)
}

// SizeField returns the fixed size field for a unit, e.g. size_gib.
func SizeField(u Unit) string {
	return "size_" + string(u)
}

// ClassField returns the per-storage-class size field for a unit,
// e.g. class:StandardStorage_gib.
func ClassField(class string, u Unit) string {
	return ClassPrefix + Sanitize(class) + "_" + string(u)
}

// IsClassField reports whether name is a storage-class field in unit u.
func IsClassField(name string, u Unit) bool {
	return strings.HasPrefix(name, ClassPrefix) && strings.HasSuffix(name, "_"+string(u))
}

var (
	bytesPerGiB = decimal.NewFromInt(1 << 30)
	bytesPerGB  = decimal.NewFromInt(1_000_000_000)
	kilo        = decimal.NewFromInt(1000)
	kibi        = decimal.NewFromInt(1024)
)

// Sizes holds one capacity in every reported unit, rounded to 2 places.
type Sizes struct {
	GiB float64
	TiB float64
	GB  float64
	TB  float64
}

// In returns the size in unit u.
func (s Sizes) In(u Unit) float64 {
	switch u {
	case GiB:
		return s.GiB
	case TiB:
		return s.TiB
	case GB:
		return s.GB
	default:
		return s.TB
	}
}

// FromBytes converts a byte count into every reported unit.
func FromBytes(bytes float64) Sizes {
	d := decimal.NewFromFloat(bytes)
	gib := d.Div(bytesPerGiB)
	gb := d.Div(bytesPerGB)
	return Sizes{
		GiB: gib.Round(2).InexactFloat64(),
		TiB: gib.Div(kibi).Round(2).InexactFloat64(),
		GB:  gb.Round(2).InexactFloat64(),
		TB:  gb.Div(kilo).Round(2).InexactFloat64(),
	}
}

// FromGiB converts a GiB figure into every reported unit.
func FromGiB(gib float64) Sizes {
	return FromBytes(decimal.NewFromFloat(gib).Mul(bytesPerGiB).InexactFloat64())
}

// FromMiB converts a MiB figure into every reported unit.
func FromMiB(mib float64) Sizes {
	return FromBytes(decimal.NewFromFloat(mib).Mul(kibi).Mul(kibi).InexactFloat64())
}

// SetSizes writes the fixed size_<unit> fields.
func SetSizes(r *Record, s Sizes) {
	for _, u := range Units {
		r.Set(SizeField(u), Number(s.In(u)))
	}
}

// SetClassSizes writes the class:<class>_<unit> fields.
func SetClassSizes(r *Record, class string, s Sizes) {
	for _, u := range Units {
		r.Set(ClassField(class, u), Number(s.In(u)))
	}
}

// SetTags writes tag fields. Keys are applied in ascending order and when
// two keys sanitize to the same field the first one wins. The colliding
// keys are returned.
func SetTags(r *Record, tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var collided []string
	for _, k := range keys {
		field := TagField(k)
		if r.Has(field) {
			collided = append(collided, k)
			continue
		}
		r.Set(field, String(tags[k]))
	}
	return collided
}
