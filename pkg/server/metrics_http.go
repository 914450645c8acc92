package server

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// metricsMux serves Prometheus metrics, a liveness probe and a session
// snapshot for operators.
func (s *Server) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/sessions", s.handleSessions)
	return mux
}

type sessionsView struct {
	Connections int           `json:"connections"`
	Online      int           `json:"online"`
	Sessions    []sessionView `json:"sessions"`
}

type sessionView struct {
	Conn    string `json:"conn"`
	Remote  string `json:"remote"`
	UserID  string `json:"user_id,omitempty"`
	LoginAt string `json:"login_at,omitempty"`
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	snap := s.registry.Snapshot()
	view := sessionsView{
		Connections: len(snap),
		Online:      s.registry.OnlineCount(),
		Sessions:    make([]sessionView, 0, len(snap)),
	}
	for _, sess := range snap {
		v := sessionView{Conn: sess.ConnID, Remote: sess.RemoteAddr, UserID: sess.UserID}
		if !sess.LoginAt.IsZero() {
			v.LoginAt = sess.LoginAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		view.Sessions = append(view.Sessions, v)
	}

	w.Header().Set("Content-Type", "application/json")
	// Write errors to http.ResponseWriter are non-actionable.
	_ = jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w).Encode(view)
}
