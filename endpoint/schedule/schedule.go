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

// Package schedule 用于定时处理文档集合
//
// A CollectionRunner runs every document of a collection through an
// aggregate on a cron spec, then signals the end of the collection with
// CollectionProcessComplete. Specs take a leading seconds field:

//Field name   | Mandatory? | Allowed values  | Allowed special characters
//----------   | ---------- | --------------  | --------------------------
//Seconds      | Yes        | 0-59            | * / , -
//Minutes      | Yes        | 0-59            | * / , -
//Hours        | Yes        | 0-23            | * / , -
//Day of month | Yes        | 1-31            | * / , - ?
//Month        | Yes        | 1-12 or JAN-DEC | * / , -
//Day of week  | Yes        | 0-6 or SUN-SAT  | * / , - ?

//内置一些特殊表达式：
//Entry                  | Description                                | Equivalent To
//-----                  | -----------                                | -------------
//@yearly (or @annually) | Run once a year, midnight, Jan. 1st        | 0 0 0 1 1 *
//@monthly               | Run once a month, midnight, first of month | 0 0 0 1 * *
//@weekly                | Run once a week, midnight between Sat/Sun  | 0 0 0 * * 0
//@daily (or @midnight)  | Run once a day, midnight                   | 0 0 0 * * *
//@hourly                | Run once an hour, beginning of hour        | 0 0 * * * *

package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/robfig/cron/v3"
	"github.com/rulego/casflow/api/types"
)

// Processor is the part of an aggregate engine a collection run needs.
// *engine.AggregateEngine implements it.
type Processor interface {
	NewCas() (types.CAS, error)
	ProcessAll(in types.CAS) ([]types.CAS, error)
	CollectionProcessComplete() error
}

// OutputHandler receives a processed input CAS and the CASes output for it.
// Both are released after the handler returns.
type OutputHandler func(in types.CAS, outputs []types.CAS)

// Job one scheduled collection run
type Job struct {
	// Processor processes the documents
	Processor Processor
	// NewReader opens the collection for one run
	NewReader func() (CollectionReader, error)
	// OnOutput optional
	OnOutput OutputHandler
}

// Result summary of one collection run
type Result struct {
	Documents int
	Outputs   int
	Failures  int
}

// ErrNoReader the job has no collection reader
var ErrNoReader = errors.New("job has no collection reader")

// CollectionRunner 定时任务端点
type CollectionRunner struct {
	id     string
	logger types.Logger
	cron   *cron.Cron
	lock   sync.Mutex
	// last result per entry id
	results map[string]Result
}

// New 创建一个新的CollectionRunner实例. Runs of the same entry never overlap.
func New(logger types.Logger) *CollectionRunner {
	if logger == nil {
		logger = types.DefaultLogger()
	}
	uuId, _ := uuid.NewV4()
	cronLogger := cron.PrintfLogger(logger)
	return &CollectionRunner{
		id:     uuId.String(),
		logger: logger,
		cron: cron.New(cron.WithSeconds(), cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		results: make(map[string]Result),
	}
}

func (r *CollectionRunner) Id() string {
	return r.id
}

// AddJob schedules job on spec and returns the entry id, used to remove it
func (r *CollectionRunner) AddJob(spec string, job Job) (string, error) {
	if job.NewReader == nil {
		return "", ErrNoReader
	}
	var idStr string
	id, err := r.cron.AddFunc(spec, func() {
		result, err := r.Run(job)
		if err != nil {
			r.logger.Printf("collection run %s error: %s", idStr, err.Error())
		}
		r.lock.Lock()
		r.results[idStr] = result
		r.lock.Unlock()
	})
	if err != nil {
		return "", err
	}
	idStr = strconv.Itoa(int(id))
	return idStr, nil
}

// RemoveJob removes a scheduled job, a running collection run completes
func (r *CollectionRunner) RemoveJob(entryId string) error {
	id, err := strconv.Atoi(entryId)
	if err != nil {
		return fmt.Errorf("%s it is an illegal entry id", entryId)
	}
	r.cron.Remove(cron.EntryID(id))
	r.lock.Lock()
	delete(r.results, entryId)
	r.lock.Unlock()
	return nil
}

// LastResult result of the last completed run of an entry
func (r *CollectionRunner) LastResult(entryId string) (Result, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	result, ok := r.results[entryId]
	return result, ok
}

func (r *CollectionRunner) Start() {
	r.cron.Start()
}

// Stop stops the scheduler and waits for running collection runs
func (r *CollectionRunner) Stop() {
	<-r.cron.Stop().Done()
}

// Run processes the whole collection once, then calls CollectionProcessComplete.
// A document that fails is logged and counted, the run goes on with the next one.
func (r *CollectionRunner) Run(job Job) (Result, error) {
	var result Result
	if job.NewReader == nil {
		return result, ErrNoReader
	}
	reader, err := job.NewReader()
	if err != nil {
		return result, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			r.logger.Printf("close collection reader error: %s", err.Error())
		}
	}()
	for reader.HasNext() {
		in, err := job.Processor.NewCas()
		if err != nil {
			return result, err
		}
		if err := reader.GetNext(in); err != nil {
			in.Release()
			return result, err
		}
		result.Documents++
		outputs, err := job.Processor.ProcessAll(in)
		if err != nil {
			result.Failures++
			r.logger.Printf("process cas=%s error: %s", in.Id(), err.Error())
		} else {
			result.Outputs += len(outputs)
			if job.OnOutput != nil {
				job.OnOutput(in, outputs)
			}
			for _, out := range outputs {
				out.Release()
			}
		}
		in.Release()
	}
	return result, job.Processor.CollectionProcessComplete()
}
