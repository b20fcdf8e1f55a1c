// Package schema implements the attribute-schema inferrer (§4.B): given a
// bounded sample of property dictionaries, it infers one of String,
// Integer or Real per field. Date is never inferred.
package schema

// ValueKind tags a single observed property value. The inferrer only
// looks at tags, never raw values (per the Design Notes' "Dynamic property
// values" guidance).
type ValueKind int

const (
	Null ValueKind = iota
	IntegerKind
	RealKind
	StringKind
)

// KindOf classifies a decoded property value. Booleans are classified as
// String (§4.B).
func KindOf(v interface{}) ValueKind {
	switch v.(type) {
	case nil:
		return Null
	case bool:
		return StringKind
	case int, int64:
		return IntegerKind
	case float64, float32:
		return RealKind
	default:
		return StringKind
	}
}

// Infer returns a field name -> type label map ("String", "Integer" or
// "Real") from up to 100 sampled property maps. Nulls contribute no
// observation; an all-Integer field infers Integer; a field that mixes
// Integer and Real infers Real; anything else infers String. An empty
// sample yields an empty map.
func Infer(sample []map[string]interface{}) map[string]string {
	if len(sample) == 0 {
		return map[string]string{}
	}

	observed := map[string]map[ValueKind]bool{}
	for _, props := range sample {
		for k, v := range props {
			kind := KindOf(v)
			if kind == Null {
				continue
			}
			if observed[k] == nil {
				observed[k] = map[ValueKind]bool{}
			}
			observed[k][kind] = true
		}
	}

	result := map[string]string{}
	for field, kinds := range observed {
		result[field] = labelFor(kinds)
	}
	return result
}

func labelFor(kinds map[ValueKind]bool) string {
	onlyInteger := len(kinds) == 1 && kinds[IntegerKind]
	if onlyInteger {
		return "Integer"
	}

	subsetOfNumeric := true
	hasReal := false
	for k := range kinds {
		if k != IntegerKind && k != RealKind {
			subsetOfNumeric = false
			break
		}
		if k == RealKind {
			hasReal = true
		}
	}
	if subsetOfNumeric && hasReal {
		return "Real"
	}

	return "String"
}
