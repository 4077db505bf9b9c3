package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skobkin/proctop-web/internal/monitor"
)

const metricsNamespace = "proctop"

func (s *Server) registerPrometheus(mux *http.ServeMux) {
	registry := prometheus.NewRegistry()
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "active_connections",
			Help:      "Current number of active WebSocket clients.",
		}, func() float64 {
			return float64(s.wsActive.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "connections_total",
			Help:      "Total WebSocket connections accepted since start.",
		}, func() float64 {
			return float64(s.wsTotal.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "rejected_total",
			Help:      "Total WebSocket connection attempts rejected due to capacity.",
		}, func() float64 {
			return float64(s.wsRejected.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "messages_sent_total",
			Help:      "Total WebSocket messages sent to clients.",
		}, func() float64 {
			return float64(s.wsSent.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ws",
			Name:      "replies_dropped_total",
			Help:      "Total WebSocket replies to client requests dropped because the client fell behind.",
		}, func() float64 {
			return float64(s.wsDropped.Load())
		}),
	}

	if c := newSnapshotCollector(s.monitor); c != nil {
		collectors = append(collectors, c)
	}

	for _, collector := range collectors {
		registry.MustRegister(collector)
	}

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

// snapshotCollector reports the latest monitor snapshot at scrape time.
type snapshotCollector struct {
	monitor *monitor.Manager
	host    []hostMetric
	process []processMetric
	load    *prometheus.Desc
}

type hostMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	extract   func(snapshot monitor.Snapshot) (float64, bool)
}

type processMetric struct {
	desc    *prometheus.Desc
	extract func(p monitor.Process) (float64, bool)
}

func newSnapshotCollector(manager *monitor.Manager) prometheus.Collector {
	if manager == nil {
		return nil
	}

	hostDesc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "host", name), help, nil, nil)
	}
	processDesc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "process", name), help, []string{"pid", "user"}, nil)
	}

	return &snapshotCollector{
		monitor: manager,
		load: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "host", "load_average"),
			"Run-queue load average.",
			[]string{"window"},
			nil,
		),
		host: []hostMetric{
			{
				desc:      hostDesc("cpu_utilization_ratio", "Share of non-idle CPU time between the last two samples."),
				valueType: prometheus.GaugeValue,
				extract: func(s monitor.Snapshot) (float64, bool) {
					return s.System.CPUUtilization, true
				},
			},
			{
				desc:      hostDesc("memory_utilization_ratio", "Share of memory not reported as free."),
				valueType: prometheus.GaugeValue,
				extract: func(s monitor.Snapshot) (float64, bool) {
					if s.System.MemoryUtilization == nil {
						return 0, false
					}
					return *s.System.MemoryUtilization, true
				},
			},
			{
				desc:      hostDesc("uptime_seconds", "Seconds since boot."),
				valueType: prometheus.GaugeValue,
				extract: func(s monitor.Snapshot) (float64, bool) {
					return float64(s.System.UptimeSeconds), true
				},
			},
			{
				desc:      hostDesc("forks_total", "Processes created since boot."),
				valueType: prometheus.CounterValue,
				extract: func(s monitor.Snapshot) (float64, bool) {
					return float64(s.System.TotalProcesses), true
				},
			},
			{
				desc:      hostDesc("procs_running", "Processes currently runnable."),
				valueType: prometheus.GaugeValue,
				extract: func(s monitor.Snapshot) (float64, bool) {
					return float64(s.System.RunningProcesses), true
				},
			},
			{
				desc:      hostDesc("snapshot_timestamp_seconds", "Unix timestamp of the latest snapshot."),
				valueType: prometheus.GaugeValue,
				extract: func(s monitor.Snapshot) (float64, bool) {
					return float64(s.Timestamp.Unix()), !s.Timestamp.IsZero()
				},
			},
			{
				desc:      hostDesc("snapshot_age_seconds", "Seconds elapsed since the latest snapshot was collected."),
				valueType: prometheus.GaugeValue,
				extract: func(s monitor.Snapshot) (float64, bool) {
					if s.Timestamp.IsZero() {
						return 0, false
					}
					return max(time.Since(s.Timestamp).Seconds(), 0), true
				},
			},
		},
		process: []processMetric{
			{
				desc: processDesc("cpu_utilization_ratio", "Lifetime average share of one CPU used by the process."),
				extract: func(p monitor.Process) (float64, bool) {
					return p.CPUUtilization, true
				},
			},
			{
				desc: processDesc("virtual_memory_megabytes", "Virtual memory size in MB."),
				extract: func(p monitor.Process) (float64, bool) {
					value, err := strconv.ParseFloat(p.RAMMB, 64)
					return value, err == nil
				},
			},
			{
				desc: processDesc("uptime_seconds", "Seconds since the process started."),
				extract: func(p monitor.Process) (float64, bool) {
					return float64(p.UptimeSeconds), true
				},
			},
		},
	}
}

func (c *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.load
	for _, metric := range c.host {
		ch <- metric.desc
	}
	for _, metric := range c.process {
		ch <- metric.desc
	}
}

func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot, ok := c.monitor.Latest()
	if !ok {
		return
	}
	for _, metric := range c.host {
		if value, ok := metric.extract(snapshot); ok {
			ch <- prometheus.MustNewConstMetric(metric.desc, metric.valueType, value)
		}
	}
	if load := snapshot.System.LoadAverage; load != nil {
		ch <- prometheus.MustNewConstMetric(c.load, prometheus.GaugeValue, load.Load1, "1m")
		ch <- prometheus.MustNewConstMetric(c.load, prometheus.GaugeValue, load.Load5, "5m")
		ch <- prometheus.MustNewConstMetric(c.load, prometheus.GaugeValue, load.Load15, "15m")
	}
	for _, p := range snapshot.Processes {
		pid := strconv.Itoa(p.PID)
		for _, metric := range c.process {
			if value, ok := metric.extract(p); ok {
				ch <- prometheus.MustNewConstMetric(metric.desc, prometheus.GaugeValue, value, pid, p.User)
			}
		}
	}
}
