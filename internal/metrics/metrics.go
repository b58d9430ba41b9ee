// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes internal/walk.Metrics as Prometheus counters, the
// way gcsfuse's own metrics handler publishes its counters for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bfswalk/bfswalk/internal/walk"
)

const namespace = "bfswalk"

// Collector is a prometheus.Collector that reads a live *walk.Metrics
// snapshot on every scrape, rather than duplicating the counters as
// separately-incremented prometheus.Counters.
type Collector struct {
	m *walk.Metrics

	opens           *prometheus.Desc
	componentWalks  *prometheus.Desc
	shrinks         *prometheus.Desc
	evictions       *prometheus.Desc
	cacheHits       *prometheus.Desc
	cacheMisses     *prometheus.Desc
	cyclesDetected  *prometheus.Desc
	visitsEmitted   *prometheus.Desc
	errorsRecovered *prometheus.Desc
}

// NewCollector wraps m for registration with a prometheus.Registry. A nil m
// is valid; every collected value reports zero.
func NewCollector(m *walk.Metrics) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &Collector{
		m:               m,
		opens:           desc("opens_total", "Directory fds opened via openat."),
		componentWalks:  desc("component_walks_total", "Ancestors opened one path component at a time after ENAMETOOLONG."),
		shrinks:         desc("cache_shrinks_total", "Permanent cache capacity reductions after EMFILE."),
		evictions:       desc("cache_evictions_total", "Cache entries closed to make room for a new open."),
		cacheHits:       desc("stat_cache_hits_total", "Stat calls served from the per-entry memoization cache."),
		cacheMisses:     desc("stat_cache_misses_total", "Stat calls that issued a syscall."),
		cyclesDetected:  desc("cycles_detected_total", "Symlink or bind-mount loops caught by detect_cycles."),
		visitsEmitted:   desc("visits_emitted_total", "Callback invocations, pre- and post-order and error visits combined."),
		errorsRecovered: desc("errors_recovered_total", "Per-entry or per-directory errors turned into error visits under recover."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.opens
	ch <- c.componentWalks
	ch <- c.shrinks
	ch <- c.evictions
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.cyclesDetected
	ch <- c.visitsEmitted
	ch <- c.errorsRecovered
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.opens, prometheus.CounterValue, float64(s.Opens))
	ch <- prometheus.MustNewConstMetric(c.componentWalks, prometheus.CounterValue, float64(s.ComponentWalks))
	ch <- prometheus.MustNewConstMetric(c.shrinks, prometheus.CounterValue, float64(s.Shrinks))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(s.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(s.CacheMisses))
	ch <- prometheus.MustNewConstMetric(c.cyclesDetected, prometheus.CounterValue, float64(s.CyclesDetected))
	ch <- prometheus.MustNewConstMetric(c.visitsEmitted, prometheus.CounterValue, float64(s.VisitsEmitted))
	ch <- prometheus.MustNewConstMetric(c.errorsRecovered, prometheus.CounterValue, float64(s.ErrorsRecovered))
}
