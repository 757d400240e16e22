package metrics

import (
	"fmt"
	"path"
	"reflect"

	"go.opencensus.io/stats"
)

type adder func(field interface{}, name string, tags map[string]string) interface{}

var fieldTagNames = []string{"metric", "group", "unit", "description", "extraviews", "tags"}

func sameType(a, b interface{}) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

// scan allocates the measures declared in a struct.
//
// A field tagged with metric:"name" must be a *stats.Int64Measure or a *stats.Float64Measure.
// Other struct fields are scanned recursively, nested under their group:"name" tag.
func scan(parent string, m interface{}, add adder) {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("metrics require a pointer to a struct, got: %T", m))
	}
	scanStruct(parent, rv.Elem(), add)
}

func scanStruct(parent string, sv reflect.Value, add adder) {
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		field, fv := st.Field(i), sv.Field(i)
		if !fv.CanSet() {
			continue
		}

		tags := make(map[string]string, len(fieldTagNames))
		for _, name := range fieldTagNames {
			if value, ok := field.Tag.Lookup(name); ok {
				tags[name] = value
			}
		}

		metric, isMetric := tags["metric"]
		switch {
		case isMetric && isMeasure(field.Type):
			allocated := add(reflect.New(field.Type.Elem()).Interface(), path.Join(parent, tags["group"], metric), tags)
			if allocated != nil {
				fv.Set(reflect.ValueOf(allocated))
			}
		case field.Type.Kind() == reflect.Struct:
			scanStruct(path.Join(parent, tags["group"]), fv, add)
		}
	}
}

func isMeasure(t reflect.Type) bool {
	return t == reflect.TypeOf(&stats.Int64Measure{}) || t == reflect.TypeOf(&stats.Float64Measure{})
}
