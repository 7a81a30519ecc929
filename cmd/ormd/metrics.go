// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-orm/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var recordCount = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "diffeo",
		Subsystem: "orm",
		Name:      "records",
		Help:      "Number of stored records of each kind",
	},
	[]string{
		"kind",
	},
)

func init() {
	prometheus.MustRegister(recordCount)
}

// observeOnce updates the record count gauge.
func observeOnce(st store.Store) error {
	counts, err := st.Count()
	if err != nil {
		return err
	}
	for kind, count := range counts {
		recordCount.With(prometheus.Labels{"kind": kind}).Set(float64(count))
	}
	return nil
}

// observe updates the record count gauge forever.
func observe(st store.Store, clk clock.Clock, interval time.Duration) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()
	for {
		if err := observeOnce(st); err != nil {
			logrus.WithError(err).Warn("could not count records")
		}
		<-ticker.C
	}
}
