// Copyright 2025 UMH Systems GmbH
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

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rentalhub/rental-core/pkg/backoff"
	"github.com/rentalhub/rental-core/pkg/persistence"
	"github.com/rentalhub/rental-core/pkg/sentry"
	"github.com/rentalhub/rental-core/pkg/tools/safejson"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

type listResponse struct {
	Data  []persistence.Document `json:"data"`
	Count int                    `json:"count"`
}

func writeJSON(c *gin.Context, status int, body interface{}) {
	data, err := safejson.Marshal(body)
	if err != nil {
		c.Data(http.StatusInternalServerError, "application/json; charset=utf-8",
			[]byte(`{"error":"failed to encode response"}`))

		return
	}

	c.Data(status, "application/json; charset=utf-8", data)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// fail maps a store error onto an HTTP status. Unexpected errors are reported.
func (s *Server) fail(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, persistence.ErrInvalidFilter),
		errors.Is(err, persistence.ErrInvalidPipeline):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, persistence.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, persistence.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case backoff.IsRetryable(err):
		c.Header("Retry-After", "10")
		writeError(c, http.StatusServiceUnavailable, "backend temporarily unavailable")
	default:
		sentry.ReportStoreError(s.logger, c.Param("name"), operation, err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(c *gin.Context, into interface{}) error {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}

	if len(data) > maxBodyBytes {
		return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxBodyBytes)
	}

	if err := safejson.Unmarshal(data, into); err != nil {
		return fmt.Errorf("%w: malformed JSON: %w", errBadRequest, err)
	}

	return nil
}

func filterParam(c *gin.Context) (persistence.Filter, error) {
	raw := c.Query("filter")
	if raw == "" {
		return nil, nil
	}

	var filter persistence.Filter
	if err := safejson.Unmarshal([]byte(raw), &filter); err != nil {
		return nil, fmt.Errorf("%w: filter is not a JSON object: %w", errBadRequest, err)
	}

	return filter, nil
}

func countParam(c *gin.Context, key string) (int, bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return 0, false, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, key)
	}

	return n, true, nil
}

// listQuery turns ?filter=&sort=&skip=&limit= into a pipeline. It returns
// nil when only a filter was given.
func listQuery(c *gin.Context, filter persistence.Filter) (persistence.Pipeline, error) {
	skip, hasSkip, err := countParam(c, "skip")
	if err != nil {
		return nil, err
	}

	limit, hasLimit, err := countParam(c, "limit")
	if err != nil {
		return nil, err
	}

	sortSpec := c.Query("sort")
	if sortSpec == "" && !hasSkip && !hasLimit {
		return nil, nil
	}

	if !hasLimit {
		limit = -1
	}

	return persistence.ListPipeline(filter, sortSpec, skip, limit), nil
}

func (s *Server) find(c *gin.Context) {
	filter, err := filterParam(c)
	if err != nil {
		s.fail(c, "find", err)
		return
	}

	pipeline, err := listQuery(c, filter)
	if err != nil {
		s.fail(c, "find", err)
		return
	}

	coll := s.store.Collection(c.Param("name"))

	var docs []persistence.Document
	if pipeline != nil {
		docs, err = coll.Aggregate(c.Request.Context(), pipeline)
	} else {
		docs, err = coll.Find(c.Request.Context(), filter)
	}

	if err != nil {
		s.fail(c, "find", err)
		return
	}

	writeJSON(c, http.StatusOK, listResponse{Data: docs, Count: len(docs)})
}

func (s *Server) count(c *gin.Context) {
	filter, err := filterParam(c)
	if err != nil {
		s.fail(c, "count", err)
		return
	}

	n, err := s.store.Collection(c.Param("name")).CountDocuments(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, "count", err)
		return
	}

	writeJSON(c, http.StatusOK, gin.H{"count": n})
}

func (s *Server) aggregate(c *gin.Context) {
	var pipeline persistence.Pipeline
	if err := decodeBody(c, &pipeline); err != nil {
		s.fail(c, "aggregate", err)
		return
	}

	docs, err := s.store.Collection(c.Param("name")).Aggregate(c.Request.Context(), pipeline)
	if err != nil {
		s.fail(c, "aggregate", err)
		return
	}

	writeJSON(c, http.StatusOK, listResponse{Data: docs, Count: len(docs)})
}

func (s *Server) get(c *gin.Context) {
	doc, err := s.store.Collection(c.Param("name")).FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "findById", err)
		return
	}

	if doc == nil {
		s.fail(c, "findById", persistence.ErrNotFound)
		return
	}

	writeJSON(c, http.StatusOK, doc)
}

func (s *Server) create(c *gin.Context) {
	var doc persistence.Document
	if err := decodeBody(c, &doc); err != nil {
		s.fail(c, "create", err)
		return
	}

	if doc == nil {
		s.fail(c, "create", fmt.Errorf("%w: body must be a JSON object", errBadRequest))
		return
	}

	created, err := s.store.Collection(c.Param("name")).Create(c.Request.Context(), doc)
	if err != nil {
		s.fail(c, "create", err)
		return
	}

	writeJSON(c, http.StatusCreated, created)
}

func (s *Server) update(c *gin.Context) {
	var patch persistence.Document
	if err := decodeBody(c, &patch); err != nil {
		s.fail(c, "updateById", err)
		return
	}

	updated, err := s.store.Collection(c.Param("name")).UpdateByID(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.fail(c, "updateById", err)
		return
	}

	if updated == nil {
		s.fail(c, "updateById", persistence.ErrNotFound)
		return
	}

	writeJSON(c, http.StatusOK, updated)
}

func (s *Server) delete(c *gin.Context) {
	deleted, err := s.store.Collection(c.Param("name")).DeleteByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, "deleteById", err)
		return
	}

	if !deleted {
		s.fail(c, "deleteById", persistence.ErrNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}
