// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestStats(t *testing.T) {
	s := newStats()
	s.add("GET")
	s.add("get")
	s.add("conditional")
	assert.Equal(t, int64(2), s.Get("get"))
	assert.Equal(t, map[string]int64{"get": 2, "conditional": 1}, s.Snapshot())

	reg := prometheus.NewRegistry()
	if !assert.NoError(t, reg.Register(s)) {
		return
	}
	families, err := reg.Gather()
	if assert.NoError(t, err) && assert.Len(t, families, 1) {
		assert.Equal(t, "orm_client_requests_total", families[0].GetName())
		metrics := families[0].GetMetric()
		if assert.Len(t, metrics, 2) {
			// Gather sorts by label value
			assert.Equal(t, "conditional", metrics[0].GetLabel()[0].GetValue())
			assert.Equal(t, 1.0, metrics[0].GetCounter().GetValue())
			assert.Equal(t, 2.0, metrics[1].GetCounter().GetValue())
		}
	}

	s.Reset()
	assert.Empty(t, s.Snapshot())
}
