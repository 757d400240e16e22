package metrics

import (
	"strconv"
	"time"

	"github.com/oneconcern/flisthub/pkg/errors"
	"go.opencensus.io/stats"
)

// UsageMetrics is a common set of metrics reporting about calls to some operations
type UsageMetrics struct {
	Count    *stats.Int64Measure   `metric:"count" description:"number of calls" tags:"operation"`
	Failures *stats.Int64Measure   `metric:"failures" description:"number of failed calls" tags:"operation,code"`
	Timing   *stats.Float64Measure `metric:"timing" unit:"milliseconds" description:"duration of a call" tags:"operation"`
}

func (u *UsageMetrics) tags(operation string) map[string]string {
	return map[string]string{"operation": operation}
}

// UsedAll records the usage of some operation, with its timing and failure, in one go.
//
// Example:
//
//	func (h *Hub) Delete(ctx context.Context, namespace, name string) (err error) {
//	  defer func(t0 time.Time) {
//	    h.m.Usage.UsedAll(t0, "delete")(err)
//	  }(time.Now())
//	  ...
//	}
func (u *UsageMetrics) UsedAll(start time.Time, operation string) func(error) {
	return func(err error) {
		tags := u.tags(operation)
		Since(start, u.Timing, tags)
		Inc(u.Count, tags)
		if err != nil {
			Inc(u.Failures, map[string]string{"operation": operation, "code": strconv.Itoa(errors.Code(err))})
		}
	}
}

// VolumeMetrics reports about the content handled by some operations
type VolumeMetrics struct {
	Entries *stats.Int64Measure `metric:"entries" description:"number of entries" extraviews:"sum" tags:"kind"`
	Size    *stats.Int64Measure `metric:"size" unit:"bytes" description:"size of content" extraviews:"sum"`
}

// Entry records a number of entries of some kind
func (v *VolumeMetrics) Entry(kind string, count int) {
	if count == 0 {
		return
	}
	Int64(v.Entries, int64(count), map[string]string{"kind": kind})
}

// Bytes records the size of some content. Zero sizes are not recorded.
func (v *VolumeMetrics) Bytes(size int64) {
	if size == 0 {
		return
	}
	Int64(v.Size, size)
}
