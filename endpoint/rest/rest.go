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

// Package rest serves the aggregates of an engine pool over HTTP.
//
//	POST /api/v1/process/:id  {"text": "...", "language": "en"}
//	POST /api/v1/process      same, on the engine DefaultEngineId
//	GET  /api/v1/engines      ids of the pooled engines
//	GET  /api/v1/components   registered component types
package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/julienschmidt/httprouter"
	"github.com/rulego/casflow/api/types"
	"github.com/rulego/casflow/engine"
	"github.com/rulego/casflow/utils/json"
)

const (
	ContentTypeKey  = "Content-Type"
	JsonContextType = "application/json"
	// DefaultEngineId engine used by POST /api/v1/process
	DefaultEngineId = "default"
)

// ProcessRequest body of a process request
type ProcessRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// CasSummary JSON form of a CAS
type CasSummary struct {
	Id          string             `json:"id"`
	Text        string             `json:"text"`
	Language    string             `json:"language"`
	Views       []string           `json:"views,omitempty"`
	Annotations []types.Annotation `json:"annotations,omitempty"`
}

// ProcessResponse input CAS after processing plus the CASes output by the aggregate
type ProcessResponse struct {
	Input   CasSummary   `json:"input"`
	Outputs []CasSummary `json:"outputs"`
}

// ErrorResponse body of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// Summarize returns the JSON form of c
func Summarize(c types.CAS) CasSummary {
	return CasSummary{
		Id:          c.Id(),
		Text:        c.DocumentText(),
		Language:    c.DocumentLanguage(),
		Views:       c.ViewNames(),
		Annotations: c.Annotations(""),
	}
}

// Config Rest 服务配置
type Config struct {
	Addr        string
	CertFile    string
	CertKeyFile string
}

// Rest 接收端端点
type Rest struct {
	//配置
	Config Config
	// Pool engines served by id
	Pool *engine.Pool
	// Registry component types listed by GET /api/v1/components
	Registry types.ComponentRegistry
	Logger   types.Logger
	//路由器
	router *httprouter.Router
	server *http.Server
}

// New creates a REST endpoint over pool. A nil pool means engine.DefaultPool.
func New(config Config, pool *engine.Pool, logger types.Logger) *Rest {
	if pool == nil {
		pool = engine.DefaultPool
	}
	if logger == nil {
		logger = types.DefaultLogger()
	}
	r := &Rest{Config: config, Pool: pool, Registry: engine.Registry, Logger: logger}
	r.router = httprouter.New()
	r.router.POST("/api/v1/process", r.process)
	r.router.POST("/api/v1/process/:id", r.process)
	r.router.GET("/api/v1/engines", r.engines)
	r.router.GET("/api/v1/components", r.components)
	r.router.PanicHandler = func(w http.ResponseWriter, req *http.Request, e interface{}) {
		r.Logger.Printf("rest handler err :%v", e)
		r.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
	return r
}

func (r *Rest) Router() *httprouter.Router {
	return r.router
}

func (r *Rest) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Start listens on Config.Addr and blocks until Stop is called
func (r *Rest) Start() error {
	r.server = &http.Server{Addr: r.Config.Addr, Handler: r.router}
	var err error
	if r.Config.CertKeyFile != "" && r.Config.CertFile != "" {
		r.Logger.Printf("starting server with TLS on %s", r.Config.Addr)
		err = r.server.ListenAndServeTLS(r.Config.CertFile, r.Config.CertKeyFile)
	} else {
		r.Logger.Printf("starting server on %s", r.Config.Addr)
		err = r.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down, waiting for running requests until ctx is done
func (r *Rest) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

func (r *Rest) process(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
	id := params.ByName("id")
	if id == "" {
		id = DefaultEngineId
	}
	aggregate, ok := r.Pool.Get(id)
	if !ok {
		r.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "engine not found: " + id})
		return
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		r.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	var request ProcessRequest
	if err := json.Unmarshal(body, &request); err != nil {
		r.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	in, err := aggregate.NewCas()
	if err != nil {
		r.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	defer in.Release()
	in.SetDocumentText(request.Text)
	if request.Language != "" {
		in.SetDocumentLanguage(request.Language)
	}
	outputs, err := aggregate.ProcessAll(in)
	if err != nil {
		r.Logger.Printf("process engine=%s cas=%s error: %s", id, in.Id(), err.Error())
		r.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}
	response := ProcessResponse{Input: Summarize(in), Outputs: make([]CasSummary, 0, len(outputs))}
	for _, out := range outputs {
		response.Outputs = append(response.Outputs, Summarize(out))
		out.Release()
	}
	r.writeJSON(w, http.StatusOK, response)
}

func (r *Rest) engines(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
	ids := make([]string, 0)
	r.Pool.Range(func(id string, engine *engine.AggregateEngine) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	r.writeJSON(w, http.StatusOK, ids)
}

func (r *Rest) components(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
	componentTypes := make([]string, 0)
	for componentType := range r.Registry.GetComponents() {
		componentTypes = append(componentTypes, componentType)
	}
	sort.Strings(componentTypes)
	r.writeJSON(w, http.StatusOK, componentTypes)
}

func (r *Rest) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		statusCode = http.StatusInternalServerError
		body = []byte(`{"error":"marshal response"}`)
	}
	w.Header().Set(ContentTypeKey, JsonContextType)
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		r.Logger.Printf("write response error: %s", err.Error())
	}
}
