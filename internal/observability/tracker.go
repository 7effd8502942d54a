package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sizer reports how many entries a tracker holds.
type Sizer interface {
	Len() int
}

// TrackerCollector exports the size of the bot's in-memory trackers as
// gauges. Sizes are read at scrape time.
type TrackerCollector struct {
	tempDirs       Sizer
	withdrawals    Sizer
	ingress        Sizer
	tempDirsDesc   *prometheus.Desc
	withdrawalDesc *prometheus.Desc
	ingressDesc    *prometheus.Desc
}

// NewTrackerCollector creates the collector. Any source may be nil.
func NewTrackerCollector(tempDirs, withdrawals, ingress Sizer) *TrackerCollector {
	return &TrackerCollector{
		tempDirs:    tempDirs,
		withdrawals: withdrawals,
		ingress:     ingress,
		tempDirsDesc: prometheus.NewDesc(
			"checkbot_tempdir_registered",
			"Number of registered temporary directories.",
			nil, nil,
		),
		withdrawalDesc: prometheus.NewDesc(
			"checkbot_withdraw_pending",
			"Number of messages waiting to be withdrawn.",
			nil, nil,
		),
		ingressDesc: prometheus.NewDesc(
			"checkbot_ingress_tracked_addresses",
			"Number of remote addresses tracked by the webhook throttle.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *TrackerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tempDirsDesc
	ch <- c.withdrawalDesc
	ch <- c.ingressDesc
}

// Collect implements prometheus.Collector.
func (c *TrackerCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.tempDirsDesc, prometheus.GaugeValue, size(c.tempDirs))
	ch <- prometheus.MustNewConstMetric(c.withdrawalDesc, prometheus.GaugeValue, size(c.withdrawals))
	ch <- prometheus.MustNewConstMetric(c.ingressDesc, prometheus.GaugeValue, size(c.ingress))
}

func size(s Sizer) float64 {
	if s == nil {
		return 0
	}
	return float64(s.Len())
}
