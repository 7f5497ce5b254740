// Package metrics exposes daemon counters on a private Prometheus registry.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/bus"
)

const namespace = "chatalyst"

// Sources are read at scrape time. Nil entries are not registered.
type Sources struct {
	Listeners func() int
	Counts    func() (users, conversations, pending int64, err error)
}

// Metrics counts bus events and samples daemon state.
type Metrics struct {
	Registry *prometheus.Registry
	events   *prometheus.CounterVec
	bus      *bus.Bus
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds the registry.
func New(b *bus.Bus, src Sources) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		bus:      b,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Bus events observed, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.events)
	reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_dropped_total",
		Help:      "Events dropped because a subscriber buffer was full.",
	}, func() float64 { return float64(b.Dropped()) }))

	if src.Listeners != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_listeners",
			Help:      "Open per-conversation remote listeners.",
		}, func() float64 { return float64(src.Listeners()) }))
	}
	if src.Counts != nil {
		count := func(pick func(u, c, p int64) int64) func() float64 {
			return func() float64 {
				u, c, p, err := src.Counts()
				if err != nil {
					return 0
				}
				return float64(pick(u, c, p))
			}
		}
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Name: "cached_users", Help: "Users in the local cache.",
			}, count(func(u, _, _ int64) int64 { return u })),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Name: "cached_conversations", Help: "Conversations in the local cache.",
			}, count(func(_, c, _ int64) int64 { return c })),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Name: "pending_messages", Help: "Messages waiting for remote confirmation.",
			}, count(func(_, _, p int64) int64 { return p })),
		)
	}
	return m
}

// Start counts every bus event until Stop.
func (m *Metrics) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	ch, unsub := m.bus.Subscribe("", 1024)

	go func() {
		defer close(m.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				m.events.WithLabelValues(evt.Kind).Inc()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends event counting.
func (m *Metrics) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}
