package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics: счётчики прогона. Процесс короткоживущий, поэтому результат
// выгружается в textfile для node_exporter, а не отдаётся по HTTP.
type Metrics struct {
	Registry *prometheus.Registry
	Rows     *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	Deleted  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academics",
			Name:      "rows_total",
			Help:      "Rows written per store, table and outcome.",
		}, []string{"store", "table", "outcome"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academics",
			Name:      "records_rejected_total",
			Help:      "Records dropped by validation in permissive mode.",
		}, []string{"stage"}),
		Deleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academics",
			Name:      "rows_deleted_total",
			Help:      "Rows removed by purge per store and table.",
		}, []string{"store", "table"}),
	}
	m.Registry.MustRegister(m.Rows, m.Rejected, m.Deleted)
	return m
}

func (m *Metrics) row(store, table string, o Outcome) {
	if m == nil {
		return
	}
	m.Rows.WithLabelValues(store, table, o.String()).Inc()
}

func (m *Metrics) rejected(stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Rejected.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) deleted(store, table string, n int64) {
	if m == nil {
		return
	}
	m.Deleted.WithLabelValues(store, table).Add(float64(n))
}

// WriteTextfile атомарно пишет все счётчики в файл формата Prometheus.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
