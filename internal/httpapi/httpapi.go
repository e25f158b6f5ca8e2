// Package httpapi is the HTTP JSON front end for internal/command: POST
// /command with the request as JSON, JSON responses on 2xx, plain-text
// errors on 5xx, and a handful of fixed informational routes.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tracewell/godbg/internal/command"
	"github.com/tracewell/godbg/internal/engine"
)

// Server holds the dependencies the HTTP routes need: the command
// dispatcher and the engine they both front.
type Server struct {
	dispatcher *command.Dispatcher
	eng        *engine.Engine
}

// NewServer binds dispatcher (already wrapping one *engine.Engine) and eng
// (for the banner route's binary/pid display).
func NewServer(dispatcher *command.Dispatcher, eng *engine.Engine) *Server {
	return &Server{dispatcher: dispatcher, eng: eng}
}

// NewRouter returns a configured chi.Router exposing POST /command, GET
// /schema, GET /response_schema, GET /, and GET /ping.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleBanner)
	r.Get("/ping", s.handlePing)
	r.Get("/schema", s.handleRequestSchema)
	r.Get("/response_schema", s.handleResponseSchema)
	r.Post("/command", s.handleCommand)

	return r
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "godbg — debugging %s (pid %d)\n", s.eng.Path(), s.eng.Pid())
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "pong")
}

func (s *Server) handleRequestSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, requestSchema())
}

func (s *Server) handleResponseSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, responseSchema())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req command.Request
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return
	}

	resp, err := s.dispatcher.Dispatch(req)
	if err != nil {
		if err == command.ErrQuit {
			writeJSON(w, http.StatusOK, resp)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			os.Exit(0)
		}
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError replies with a plain-text body — deliberately not JSON, unlike
// the 2xx responses.
func writeError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}
