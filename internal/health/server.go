package health

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Path is the only route the liveness listener answers.
const Path = "/health"

// Server is the liveness listener. It shares no state with the polling loop,
// so it keeps answering while a provider call stalls.
type Server struct {
	srv *http.Server
}

// NewServer creates a listener on port.
func NewServer(port int) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handler answers GET and HEAD on Path with 200 "ok"; everything else is 404.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != Path || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write([]byte("ok"))
		}
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[INFO] health server listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
