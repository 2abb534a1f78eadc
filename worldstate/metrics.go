// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package worldstate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/worldstate/utils/wrappers"
	"github.com/ava-labs/worldstate/worldstate/heights"
)

const (
	namespace = "worldstate"

	treeLabel   = "tree"
	markerLabel = "marker"
	opLabel     = "op"

	handleBlockOp = "handle_block"
	commitOp      = "commit"
	unwindOp      = "unwind"
	pruneOp       = "prune"
	forkOp        = "fork"
)

type metrics struct {
	treeSize     *prometheus.GaugeVec
	height       *prometheus.GaugeVec
	forks        prometheus.Gauge
	duration     *prometheus.HistogramVec
	selfProduced prometheus.Counter
	rebuilt      prometheus.Counter
	mismatches   prometheus.Counter
}

// newMetrics registers the world state metrics on [reg]. A nil [reg] keeps
// the metrics unregistered.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		treeSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tree_size",
				Help:      "number of leaves of each committed tree",
			},
			[]string{treeLabel},
		),
		height: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "height",
				Help:      "chain markers of the world state",
			},
			[]string{markerLabel},
		),
		forks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forks",
			Help:      "number of open forks",
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "op_duration_seconds",
				Help:      "time spent in world state operations",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{opLabel},
		),
		selfProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "self_produced_blocks",
			Help:      "number of blocks committed from pending state",
		}),
		rebuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuilt_blocks",
			Help:      "number of blocks rebuilt from their tx effects",
		}),
		mismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_mismatches",
			Help:      "number of blocks whose published state did not match",
		}),
	}
	if reg == nil {
		return m, nil
	}

	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.treeSize),
		reg.Register(m.height),
		reg.Register(m.forks),
		reg.Register(m.duration),
		reg.Register(m.selfProduced),
		reg.Register(m.rebuilt),
		reg.Register(m.mismatches),
	)
	return m, errs.Err
}

func (m *metrics) observe(op string, start time.Time) {
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metrics) setState(summary heights.Summary, tip BlockState) {
	m.height.WithLabelValues("unfinalised").Set(float64(summary.Unfinalised))
	m.height.WithLabelValues("finalised").Set(float64(summary.Finalised))
	m.height.WithLabelValues("oldest").Set(float64(summary.Oldest))
	for _, id := range AllTrees {
		m.treeSize.WithLabelValues(id.String()).Set(float64(tip[id].Size))
	}
}
