// Package metrics provides Prometheus instrumentation for the chat engine:
// connection counts, chat event outcomes, fan-out sizes and addon traffic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realmchat_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// ChatEvents counts inbound chat events by category.
	ChatEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realmchat_chat_events_total",
		Help: "Inbound chat events by category",
	}, []string{"category"})

	// ChatRejections counts dropped chat events by rejection kind and category.
	ChatRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realmchat_chat_rejections_total",
		Help: "Dropped chat events by rejection kind",
	}, []string{"kind", "category"})

	// FanOut records how many recipients each delivered message reached.
	FanOut = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "realmchat_fanout_recipients",
		Help:    "Recipients per delivered chat message",
		Buckets: []float64{1, 2, 5, 10, 25, 40, 100, 250, 1000},
	}, []string{"audience"})

	// DispatchLatency records time spent gating and fanning out one event.
	DispatchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "realmchat_dispatch_latency_seconds",
		Help:    "Chat event dispatch latency in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
	})

	// AddonCommands counts handled addon menu commands.
	AddonCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realmchat_addon_commands_total",
		Help: "Handled addon menu commands",
	}, []string{"command"})

	// AddonFrames counts outbound addon frames.
	AddonFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realmchat_addon_frames_total",
		Help: "Outbound addon frames",
	})

	// Emotes counts broadcast emotes, labeled "anim" or "text".
	Emotes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realmchat_emotes_total",
		Help: "Broadcast emotes",
	}, []string{"type"})

	// FloodMutes counts automatic mutes applied by flood control.
	FloodMutes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realmchat_flood_mutes_total",
		Help: "Automatic flood-control mutes",
	})

	// Kicks counts connections terminated for invalid chat links.
	Kicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realmchat_kicks_total",
		Help: "Connections terminated by the content filter",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		ChatEvents,
		ChatRejections,
		FanOut,
		DispatchLatency,
		AddonCommands,
		AddonFrames,
		Emotes,
		FloodMutes,
		Kicks,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
