// Package metrics records opencensus measurements about flisthub operations.
//
// Measures are declared as tagged struct fields and registered with EnsureMetrics,
// which allocates each measure along with its default view.
//
// Recording works without any exporter: views are then only available in-process (see view.RetrieveData).
package metrics

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	units "github.com/docker/go-units"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const (
	unitCount    = "count"
	unitSumBytes = "sumbytes"
	unitMillis   = "milliseconds"
	unitBytes    = "bytes"
)

var (
	mp       = defaultSettings()
	initOnce sync.Once
)

type settings struct {
	basePath string
	exporter view.Exporter
	period   time.Duration

	modules map[string]interface{}
	views   []*view.View
	mx      sync.Mutex
}

func defaultSettings() *settings {
	return &settings{
		basePath: "flisthub",
		modules:  make(map[string]interface{}),
	}
}

func newSettings(opts ...Option) *settings {
	s := defaultSettings()
	for _, apply := range opts {
		apply(s)
	}
	if s.exporter != nil {
		view.RegisterExporter(s.exporter)
		if s.period >= time.Second {
			view.SetReportingPeriod(s.period)
		}
	}
	return s
}

// Init global settings for metrics collection, such as the exporter.
//
// Only the first call to Init matters. Modules registered before Init are carried over.
func Init(opts ...Option) {
	initOnce.Do(func() {
		s := newSettings(opts...)
		mp.mx.Lock()
		defer mp.mx.Unlock()
		s.modules, s.views = mp.modules, mp.views
		mp = s
	})
}

// Flush exports the current data of all registered views
func Flush() {
	mp.flush()
}

// EnsureMetrics registers a pointer to a struct of measures under some location.
//
// Only the first registration of a location applies: later calls return the registered value.
// EnsureMetrics panics when a location is registered again with a different type.
func EnsureMetrics(location string, m interface{}) interface{} {
	return mp.ensure(location, m)
}

// Inc increments a counter
func Inc(counter *stats.Int64Measure, tags ...map[string]string) {
	Int64(counter, 1, tags...)
}

// Int64 records a measurement
func Int64(measure *stats.Int64Measure, value int64, tags ...map[string]string) {
	if measure == nil {
		return
	}
	_ = stats.RecordWithTags(context.Background(), mutators(tags), measure.M(value))
}

// Float64 records a measurement
func Float64(measure *stats.Float64Measure, value float64, tags ...map[string]string) {
	if measure == nil {
		return
	}
	_ = stats.RecordWithTags(context.Background(), mutators(tags), measure.M(value))
}

// Since records the milliseconds elapsed since start
func Since(start time.Time, measure *stats.Float64Measure, tags ...map[string]string) {
	Float64(measure, float64(time.Since(start).Nanoseconds())/1e6, tags...)
}

func mutators(extras []map[string]string) []tag.Mutator {
	m := make([]tag.Mutator, 0, 4)
	for _, extra := range extras {
		for k, v := range extra {
			m = append(m, tag.Upsert(tag.MustNewKey(k), v))
		}
	}
	return m
}

func (s *settings) ensure(location string, m interface{}) interface{} {
	s.mx.Lock()
	defer s.mx.Unlock()
	location = path.Join(s.basePath, location)

	if existing, ok := s.modules[location]; ok {
		if !sameType(existing, m) {
			panic("metrics module " + location + " registered again with a different type")
		}
		return existing
	}
	scan(location, m, s.addMetric)
	s.modules[location] = m
	return m
}

func (s *settings) flush() {
	if s.exporter == nil {
		return
	}
	s.mx.Lock()
	views := append([]*view.View(nil), s.views...)
	s.mx.Unlock()

	now := time.Now()
	for _, v := range views {
		rows, err := view.RetrieveData(v.Name)
		if err != nil || len(rows) == 0 {
			continue
		}
		s.exporter.ExportView(&view.Data{View: v, Start: now, End: now, Rows: rows})
	}
}

// addMetric allocates a measure for a tagged field, with a default view chosen from its unit:
// counters get a count view, bytes a size distribution, milliseconds a duration distribution,
// sumbytes a cumulated sum. Extra views are declared with extraviews:"sum,lastvalue,count".
func (s *settings) addMetric(field interface{}, name string, tags map[string]string) interface{} {
	description := tags["description"]
	if description == "" {
		description = name
	}
	unit, agg := unitAndAggregation(tags["unit"])

	var measure stats.Measure
	switch field.(type) {
	case *stats.Int64Measure:
		measure = stats.Int64(name, description, unit)
	case *stats.Float64Measure:
		measure = stats.Float64(name, description, unit)
	default:
		return nil
	}

	var keys []tag.Key
	for _, k := range strings.Split(tags["tags"], ",") {
		if k != "" {
			keys = append(keys, tag.MustNewKey(k))
		}
	}

	s.register(&view.View{Name: name, Description: describe(description, agg), Measure: measure, Aggregation: agg, TagKeys: keys})
	for _, extra := range strings.Split(tags["extraviews"], ",") {
		var agg *view.Aggregation
		switch extra {
		case unitCount:
			agg = view.Count()
		case "sum":
			agg = view.Sum()
		case "lastvalue":
			agg = view.LastValue()
		default:
			continue
		}
		s.register(&view.View{Name: describe(name, agg), Description: describe(description, agg), Measure: measure, Aggregation: agg, TagKeys: keys})
	}

	if m, ok := measure.(*stats.Float64Measure); ok {
		return m
	}
	return measure.(*stats.Int64Measure)
}

func (s *settings) register(v *view.View) {
	s.views = append(s.views, v)
	_ = view.Register(v)
}

func unitAndAggregation(unit string) (string, *view.Aggregation) {
	switch unit {
	case unitMillis:
		// buckets in milliseconds
		return stats.UnitMilliseconds, view.Distribution(10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000, 300000, 1800000)
	case unitBytes:
		return stats.UnitBytes, view.Distribution(units.KiB, 64*units.KiB, units.MiB, 16*units.MiB, 128*units.MiB, units.GiB, 10*units.GiB)
	case unitSumBytes:
		return stats.UnitBytes, view.Sum()
	default:
		return stats.UnitDimensionless, view.Count()
	}
}

func describe(desc string, agg *view.Aggregation) string {
	switch agg.Type {
	case view.AggTypeCount:
		return desc + " [count]"
	case view.AggTypeSum:
		return desc + " [cumulated]"
	case view.AggTypeDistribution:
		return desc + " [distribution]"
	case view.AggTypeLastValue:
		return desc + " [last]"
	default:
		return desc
	}
}
