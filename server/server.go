// Copyright 2025 Poiesic Systems
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


package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/query"
	"github.com/poiesic/docpipe/queue"
	"github.com/poiesic/docpipe/storage"
)

// Server holds the state for the REST API server.
type Server struct {
	jobs         storage.JobRepository
	vectors      storage.VectorRepository
	graph        storage.GraphRepository
	dispatcher   *queue.Dispatcher
	inline       *pipeline.InlineIngestor
	orchestrator *query.Orchestrator
	router       *gin.Engine
	logger       *slog.Logger
}

// NewServer creates a new Server instance wiring the HTTP surface to the
// pipeline collaborators.
func NewServer(
	jobs storage.JobRepository,
	vectors storage.VectorRepository,
	graph storage.GraphRepository,
	dispatcher *queue.Dispatcher,
	inline *pipeline.InlineIngestor,
	orchestrator *query.Orchestrator,
) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		jobs:         jobs,
		vectors:      vectors,
		graph:        graph,
		dispatcher:   dispatcher,
		inline:       inline,
		orchestrator: orchestrator,
		router:       r,
		logger:       slog.Default().With("component", "http-server"),
	}
	s.setupRoutes()
	return s
}

// Run starts the server on the specified address.
func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.router.Run(addr)
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/ingest", s.handleIngest)
	s.router.GET("/jobs/:id", s.handleGetJob)
	s.router.POST("/ingest-stream", s.handleIngestStream)
	s.router.POST("/query-stream", s.handleQueryStream)
}
