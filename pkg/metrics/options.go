package metrics

import (
	"time"

	"go.opencensus.io/stats/view"
)

// Option defines some options to the metrics initialization
type Option func(*settings)

// WithBasePath defines the root of registered metrics names. The default is "flisthub".
func WithBasePath(location string) Option {
	return func(s *settings) {
		s.basePath = location
	}
}

// WithExporter configures the exporter to convey metrics to some backend collector
func WithExporter(exporter view.Exporter) Option {
	return func(s *settings) {
		if exporter != nil {
			s.exporter = exporter
		}
	}
}

// WithReportingPeriod configures how often the exporter is going to upload metrics.
// Durations under 1 sec do not have any effect. The default is 10s.
func WithReportingPeriod(d time.Duration) Option {
	return func(s *settings) {
		s.period = d
	}
}
