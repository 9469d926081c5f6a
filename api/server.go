// Package api exposes the HTTP surface over the store and the engine
// command bus.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/raykavin/stardust/core"
)

// Error codes returned in the error body.
const (
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodeInternal         = "INTERNAL"
	CodeIncorrectRequest = "INCORRECT_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyExist     = "ALREADY_EXIST"
)

// Server serves the single-user HTTP API.
type Server struct {
	storage  core.Storage
	commands chan<- core.Command
	profile  core.UserProfile
	token    string
	log      core.Logger
}

// NewServer builds the API server. Requests must carry the configured
// bearer token.
func NewServer(storage core.Storage, commands chan<- core.Command, profile core.UserProfile, token string, log core.Logger) *Server {
	return &Server{
		storage:  storage,
		commands: commands,
		profile:  profile,
		token:    token,
		log:      log,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /algo/create", s.auth(s.createAlgo))
	mux.HandleFunc("GET /list/algos", s.auth(s.listAlgos))
	mux.HandleFunc("GET /algo/{name}", s.auth(s.getAlgo))
	mux.HandleFunc("POST /delete/algo/{name}", s.auth(s.deleteAlgo))

	mux.HandleFunc("POST /backtest/run", s.auth(s.runBacktest))
	mux.HandleFunc("GET /backtest/status/{id}", s.auth(s.backtestStatus))
	mux.HandleFunc("GET /backtest/trades/{id}", s.auth(s.backtestTrades))
	mux.HandleFunc("GET /list/backtests", s.auth(s.listBacktests))

	mux.HandleFunc("POST /algo/deploy", s.auth(s.deployAlgo))
	mux.HandleFunc("POST /algo/undeploy/{id}", s.auth(s.undeployAlgo))
	mux.HandleFunc("GET /algo/deployed/status/{id}", s.auth(s.deploymentStatus))
	mux.HandleFunc("GET /algo/deployed/trades/{id}", s.auth(s.deploymentTrades))
	mux.HandleFunc("GET /list/algos/deployed", s.auth(s.listDeployments))

	return mux
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Infof("api: listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// auth checks the bearer token before passing the request through.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			s.writeError(w, http.StatusUnauthorized, CodeAuthRequired, "missing or invalid token")
			return
		}
		next(w, r)
	}
}

type errorBody struct {
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorDesc string `json:"error_desc"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, desc string) {
	s.writeJSON(w, status, errorBody{Status: "ERROR", ErrorCode: code, ErrorDesc: desc})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Error("api: encoding response")
	}
}

// storeError maps storage errors onto the error body shape.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrAlgoNotFound),
		errors.Is(err, core.ErrDeploymentNotFound),
		errors.Is(err, core.ErrBacktestNotFound):
		s.writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	default:
		s.log.WithError(err).Error("api: storage failure")
		s.writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func (s *Server) enqueue(r *http.Request, cmd core.Command) error {
	select {
	case s.commands <- cmd:
		return nil
	case <-r.Context().Done():
		return r.Context().Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("engine command bus is full")
	}
}
