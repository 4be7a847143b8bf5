// Package telemetry holds the prometheus instrumentation shared across the
// server.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tunebingo_rooms_active",
		Help: "Number of rooms currently held in memory.",
	})

	PlayersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tunebingo_players_connected",
		Help: "Number of websocket connections currently attached to rooms.",
	})

	CardsDealtTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunebingo_cards_dealt_total",
		Help: "Bingo cards dealt, by dealing mode.",
	}, []string{"mode"})

	SongAdvancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunebingo_song_advances_total",
		Help: "Song advances, by reason (timer, skip, previous, stall, overrun, early_failure).",
	}, []string{"reason"})

	StallRecoveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunebingo_stall_recoveries_total",
		Help: "Resume attempts issued by the stall watchdog.",
	})

	PlaybackErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunebingo_playback_errors_total",
		Help: "Playback control failures, by kind.",
	}, []string{"kind"})

	BingosCalledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunebingo_bingos_called_total",
		Help: "Accepted bingo claims.",
	})
)
