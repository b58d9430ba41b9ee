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

// A demonstration driver for bfswalk.
//
// Usage:
//
//	bfswalk [-config path] root [root...]
//
// This intentionally does not parse a predicate/expression language the
// way find(1) does -- that's an explicit non-goal of the underlying engine
// -- so a hand-rolled flag scan is enough; pulling in a flag/CLI framework
// for two options would buy nothing (see DESIGN.md).
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bfswalk/bfswalk"
	"github.com/bfswalk/bfswalk/internal/cfg"
	"github.com/bfswalk/bfswalk/internal/logger"
	"github.com/bfswalk/bfswalk/internal/metrics"
	"github.com/bfswalk/bfswalk/internal/walk"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var configPath string
	var roots []string
	for i := 0; i < len(args); i++ {
		if args[i] == "-config" && i+1 < len(args) {
			configPath = args[i+1]
			i++
			continue
		}
		roots = append(roots, args[i])
	}

	fc, err := cfg.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bfswalk: loading config: %v\n", err)
		return 1
	}
	if len(roots) > 0 {
		fc.Paths = roots
	}
	if len(fc.Paths) == 0 {
		fmt.Fprintln(os.Stderr, "bfswalk: no root paths given")
		return 2
	}

	logger.Init(logger.Options{
		Severity:             fc.Logging.Severity,
		Format:               fc.Logging.Format,
		FilePath:             fc.Logging.FilePath,
		LogRotateMaxSizeMB:   fc.Logging.LogRotate.MaxFileSizeMb,
		LogRotateBackupCount: fc.Logging.LogRotate.BackupFileCount,
		LogRotateCompress:    fc.Logging.LogRotate.Compress,
	})

	m := &walk.Metrics{}
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(m))
	if addr := os.Getenv("BFSWALK_METRICS_ADDR"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			logger.Errorf("metrics server exited: %v", http.ListenAndServe(addr, mux))
		}()
	}

	callback := func(p *walk.Payload) walk.Action {
		if p.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p.FullPath, p.Err)
			return walk.ActionContinue
		}
		if p.Kind == walk.VisitPost {
			return walk.ActionContinue
		}
		fmt.Println(p.FullPath)
		return walk.ActionContinue
	}

	walkCfg := cfg.ToWalkConfig(fc, callback, nil, m, logger.WalkLogger{})
	if err := bfswalk.Walk(walkCfg); err != nil {
		fmt.Fprintf(os.Stderr, "bfswalk: %v\n", err)
		return 1
	}
	return 0
}
