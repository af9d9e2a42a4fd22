package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/l1jgo/scene/internal/core/event"
)

// Scene holds the collectors describing transaction processing and culling.
type Scene struct {
	batches         prometheus.Counter
	transactions    prometheus.Counter
	operations      *prometheus.CounterVec
	watermark       prometheus.Gauge
	capacity        prometheus.Gauge
	visible         prometheus.Gauge
	nonSpatial      prometheus.Gauge
	snapshots       prometheus.Counter
	produceFailures prometheus.Counter
}

// New creates the collectors and registers them, plus a gauge reading the
// intake queue depth through pending.
func New(reg prometheus.Registerer, pending func() int) *Scene {
	m := &Scene{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scene_batches_total",
			Help: "Transaction queue passes processed.",
		}),
		transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scene_transactions_total",
			Help: "Transactions drained from the intake queue.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scene_operations_total",
			Help: "Item operations applied, by kind.",
		}, []string{"op"}),
		watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scene_allocated_items",
			Help: "Published allocated-item watermark.",
		}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scene_item_store_capacity",
			Help: "Length of the item store.",
		}),
		visible: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scene_visible_items",
			Help: "Spatial items intersecting the view on the last frame.",
		}),
		nonSpatial: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scene_nonspatial_items",
			Help: "Items held by the non-spatial set on the last frame.",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scene_snapshots_total",
			Help: "Scene snapshots persisted.",
		}),
		produceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scene_produce_failures_total",
			Help: "Frames whose producer failed and dropped its transactions.",
		}),
	}
	reg.MustRegister(m.batches, m.transactions, m.operations, m.watermark,
		m.capacity, m.visible, m.nonSpatial, m.snapshots, m.produceFailures)
	if pending != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "scene_pending_transactions",
			Help: "Transactions waiting in the intake queue.",
		}, func() float64 { return float64(pending()) }))
	}
	return m
}

// Subscribe wires the collectors to the frame event bus.
func (m *Scene) Subscribe(bus *event.Bus) {
	event.Subscribe(bus, m.ObserveBatch)
	event.Subscribe(bus, m.ObserveCull)
	event.Subscribe(bus, func(event.SnapshotSaved) { m.snapshots.Inc() })
	event.Subscribe(bus, func(event.ProduceFailed) { m.produceFailures.Inc() })
}

func (m *Scene) ObserveBatch(e event.BatchCommitted) {
	m.batches.Inc()
	m.transactions.Add(float64(e.Stats.Transactions))
	m.operations.WithLabelValues("reset").Add(float64(e.Stats.Resets))
	m.operations.WithLabelValues("update").Add(float64(e.Stats.Updates))
	m.operations.WithLabelValues("remove").Add(float64(e.Stats.Removes))
	m.watermark.Set(float64(e.Stats.MaxID))
	m.capacity.Set(float64(e.Stats.Capacity))
}

func (m *Scene) ObserveCull(e event.CullCompleted) {
	m.visible.Set(float64(e.Visible))
	m.nonSpatial.Set(float64(e.NonSpatial))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
