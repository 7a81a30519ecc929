// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Ormd publishes the records in a store as a hypermedia REST API.
// The kinds of record it serves are described in a YAML schema file:
//
//     kinds:
//       - name: groups
//         required: [name]
//       - name: nodes
//         references:
//           group: groups
//         actions: [reboot]
//     users:
//       admin: secret
//
// Prometheus metrics, including a per-kind record count, are served
// under /metrics.
package main

import (
	"flag"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-orm/backend"
	"github.com/diffeo/go-orm/restserver"
	"github.com/sirupsen/logrus"
)

func main() {
	httpBind := flag.String("http", ":5981",
		"[ip]:port for HTTP REST interface")
	backend := backend.Backend{Implementation: "memory", Address: ""}
	flag.Var(&backend, "backend", "impl[:address] of the storage backend")
	schemaFile := flag.String("schema", "", "YAML file describing the published kinds")
	logRequests := flag.Bool("log-requests", false, "log all requests")
	interval := flag.Duration("metrics-interval", 30*time.Second,
		"how often to count records for metrics")
	flag.Parse()

	if *schemaFile == "" {
		logrus.Fatal("A -schema file is required")
		return
	}
	schema, err := restserver.LoadSchema(*schemaFile)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err":  err,
			"file": *schemaFile,
		}).Fatal("Could not load schema")
		return
	}

	st, err := backend.Store()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"err":     err,
			"backend": backend.String(),
		}).Fatal("Could not create storage backend")
		return
	}

	go observe(st, clock.New(), *interval)

	server := &HTTP{
		Store:       st,
		Schema:      schema,
		LogRequests: *logRequests,
	}
	logrus.WithFields(logrus.Fields{
		"http":    *httpBind,
		"backend": backend.String(),
		"kinds":   len(schema.Kinds),
	}).Info("serving")
	if err := server.Serve(*httpBind); err != nil {
		logrus.WithError(err).Fatal("HTTP server failed")
	}
}
