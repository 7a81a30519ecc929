// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts the requests an API client makes.  Each HTTP method
// has a counter under its lowercase name; "conditional" counts
// requests that carried an If-None-Match: header, and "retries"
// counts transport-level retries.
//
// Stats is a prometheus.Collector, so it can be registered directly:
//
//     prometheus.MustRegister(api.Stats())
type Stats struct {
	mu     sync.Mutex
	counts map[string]int64
	desc   *prometheus.Desc
}

func newStats() *Stats {
	return &Stats{
		counts: make(map[string]int64),
		desc: prometheus.NewDesc(
			"orm_client_requests_total",
			"Requests made by the REST client, by kind",
			[]string{"kind"}, nil,
		),
	}
}

func (s *Stats) add(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[strings.ToLower(kind)]++
}

// Get returns a single counter.
func (s *Stats) Get(kind string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}

// Snapshot returns a copy of every counter.
func (s *Stats) Snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[string]int64)
}

// Describe implements prometheus.Collector.
func (s *Stats) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.desc
}

// Collect implements prometheus.Collector.
func (s *Stats) Collect(ch chan<- prometheus.Metric) {
	counts := s.Snapshot()
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		ch <- prometheus.MustNewConstMetric(s.desc, prometheus.CounterValue, float64(counts[kind]), kind)
	}
}
