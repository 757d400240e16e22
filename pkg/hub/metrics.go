package hub

import (
	"time"

	"github.com/oneconcern/flisthub/pkg/flist"
	"github.com/oneconcern/flisthub/pkg/metrics"
	"github.com/oneconcern/flisthub/pkg/tool"
	"go.opencensus.io/stats"
)

// hubMetrics are recorded by every hub of a process
type hubMetrics struct {
	Usage  metrics.UsageMetrics  `group:"operations"`
	Builds metrics.VolumeMetrics `group:"builds"`
	Checks struct {
		Checked *stats.Int64Measure `metric:"checked" description:"blocks checked against the backend" extraviews:"sum"`
		Missing *stats.Int64Measure `metric:"missing" description:"blocks missing from the backend" extraviews:"sum,lastvalue"`
	} `group:"checks"`
}

func newHubMetrics() *hubMetrics {
	return metrics.EnsureMetrics("hub", &hubMetrics{}).(*hubMetrics)
}

// used starts timing an operation. The returned func records the outcome.
func (m *hubMetrics) used(operation string) func(error) {
	return m.Usage.UsedAll(time.Now(), operation)
}

func (m *hubMetrics) built(r tool.BuildResult) {
	m.Builds.Entry(TypeRegular, r.Regular)
	m.Builds.Entry("directory", r.Directory)
	m.Builds.Entry(TypeSymlink, r.Symlink)
	m.Builds.Entry("special", r.Special)
	m.Builds.Entry("failure", r.Failure)
	m.Builds.Bytes(r.Size)
}

func (m *hubMetrics) checked(r flist.Result) {
	metrics.Int64(m.Checks.Checked, int64(r.Checked))
	metrics.Int64(m.Checks.Missing, int64(len(r.Missing)))
}
