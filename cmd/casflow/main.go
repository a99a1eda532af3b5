/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command casflow loads an aggregate descriptor and serves it over REST,
// runs it on a cron spec over a collection of files, or both.
//
//	casflow -d pipeline.yaml -addr :9090
//	casflow -d pipeline.yaml -cron "@every 1m" -in "data/*.txt"
//	casflow -driver mysql -dsn "root:root@tcp(127.0.0.1:3306)/casflow" -d org.example.pipeline
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/descriptor"
	"github.com/rulego/casflow/endpoint/rest"
	"github.com/rulego/casflow/endpoint/schedule"
	"github.com/rulego/casflow/engine"
)

// server version.
const version = "1.0.0"

var (
	descriptorFile string
	dataPath       string
	addr           string
	cronSpec       string
	inputPattern   string
	language       string
	driverName     string
	dsn            string
	logfile        string
	debug          bool
	ver            bool
)

func init() {
	flag.StringVar(&descriptorFile, "d", "", "Aggregate descriptor file, or descriptor name when -driver is set.")
	flag.StringVar(&dataPath, "p", "", "Data path searched for descriptors imported by name, separated by "+string(os.PathListSeparator)+".")
	flag.StringVar(&addr, "addr", "", "Address of the REST endpoint, e.g. :9090.")
	flag.StringVar(&cronSpec, "cron", "", "Cron spec of the collection run, e.g. @every 1m.")
	flag.StringVar(&inputPattern, "in", "", "Glob pattern of the collection files.")
	flag.StringVar(&language, "lang", "", "Language of the collection files.")
	flag.StringVar(&driverName, "driver", "", "Database driver of the descriptor store: mysql or postgres.")
	flag.StringVar(&dsn, "dsn", "", "Data source name of the descriptor store.")
	flag.StringVar(&logfile, "logfile", "", "Location of the logfile.")
	flag.BoolVar(&debug, "debug", false, "Log every delegate invocation.")
	flag.BoolVar(&ver, "version", false, "Print version.")
}

func main() {
	flag.Parse()

	if ver {
		fmt.Printf("casflow v%s\n", version)
		os.Exit(0)
	}

	var logger *log.Logger
	if logfile == "" {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		f, err := os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			panic(err)
		}
		logger = log.New(f, "", log.LstdFlags)
	}

	if descriptorFile == "" {
		fmt.Println("no aggregate descriptor, set the flag -d")
		os.Exit(1)
	}

	spec, opts, closeStore, err := loadDescriptor(logger)
	if err != nil {
		logger.Fatal("load descriptor error: ", err)
	}
	defer closeStore()
	aggregate, ok := spec.(*types.AggregateSpecifier)
	if !ok {
		logger.Fatalf("%s: %s", engine.ErrNotAggregate, spec.Kind())
	}
	opts = append(opts, types.WithLogger(logger))
	if debug {
		opts = append(opts, types.WithOnDebug(func(aggregate string, flowType string, componentKey string, cas types.CAS, err error) {
			logger.Printf("aggregate=%s,flowType=%s,key=%s,cas=%s,err=%v", aggregate, flowType, componentKey, cas.Id(), err)
		}))
	}

	pool := engine.DefaultPool
	defer pool.Stop()
	e, err := pool.New(rest.DefaultEngineId, aggregate, opts...)
	if err != nil {
		logger.Fatal("create engine error: ", err)
	}
	logger.Printf("engine %s initialised.", e.Name())

	var runner *schedule.CollectionRunner
	if cronSpec != "" {
		if inputPattern == "" {
			logger.Fatal("-cron needs the flag -in")
		}
		runner = schedule.New(logger)
		_, err := runner.AddJob(cronSpec, schedule.Job{
			Processor: e,
			NewReader: func() (schedule.CollectionReader, error) {
				return schedule.NewFileReader(inputPattern, language)
			},
			OnOutput: func(in types.CAS, outputs []types.CAS) {
				logger.Printf("processed cas=%s annotations=%d outputs=%d", in.Id(), len(in.Annotations("")), len(outputs))
			},
		})
		if err != nil {
			logger.Fatal("schedule error: ", err)
		}
		runner.Start()
		logger.Printf("collection run scheduled on %s", cronSpec)
	} else if inputPattern != "" {
		result, err := schedule.New(logger).Run(schedule.Job{
			Processor: e,
			NewReader: func() (schedule.CollectionReader, error) {
				return schedule.NewFileReader(inputPattern, language)
			},
		})
		if err != nil {
			logger.Fatal("collection run error: ", err)
		}
		logger.Printf("documents=%d outputs=%d failures=%d", result.Documents, result.Outputs, result.Failures)
		if addr == "" {
			return
		}
	}

	var restEndpoint *rest.Rest
	if addr != "" {
		restEndpoint = rest.New(rest.Config{Addr: addr}, pool, logger)
		go func() {
			if err := restEndpoint.Start(); err != nil {
				logger.Fatal("ListenAndServe: ", err)
			}
		}()
	}
	if restEndpoint == nil && runner == nil {
		return
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	logger.Print("shutting down.")
	if runner != nil {
		runner.Stop()
	}
	if restEndpoint != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := restEndpoint.Stop(ctx); err != nil {
			logger.Printf("shutdown error: %s", err.Error())
		}
	}
}

// loadDescriptor reads the aggregate from the descriptor store or from a file
func loadDescriptor(logger *log.Logger) (types.ComponentSpecifier, []types.Option, func(), error) {
	if driverName != "" {
		store, err := descriptor.OpenSqlResourceManager(driverName, dsn)
		if err != nil {
			return nil, nil, nil, err
		}
		spec, err := store.Load(descriptorFile)
		if err != nil {
			_ = store.Close()
			return nil, nil, nil, err
		}
		return spec, []types.Option{types.WithResourceManager(store)}, func() {
			if err := store.Close(); err != nil {
				logger.Printf("close descriptor store error: %s", err.Error())
			}
		}, nil
	}
	spec, err := descriptor.LoadFile(descriptorFile)
	if err != nil {
		return nil, nil, nil, err
	}
	paths := []string{filepath.Dir(descriptorFile)}
	if dataPath != "" {
		paths = append(paths, strings.Split(dataPath, string(os.PathListSeparator))...)
	}
	return spec, []types.Option{types.WithResourceManager(descriptor.NewFileResourceManager(paths...))}, func() {}, nil
}
