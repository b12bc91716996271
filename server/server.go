// Package server exposes rollout progress over http: a stats snapshot, a websocket
// of live stats, and the recorded episode history.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"ptzcam/episodelog"
	"ptzcam/reinforcement"
	"ptzcam/server/stream"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	// DEFAULT_EPISODE_LIMIT is the number of episodes listed when no limit is given.
	DEFAULT_EPISODE_LIMIT = 50
	MAX_EPISODE_LIMIT     = 1000
	shutdownGracePeriod   = 5 * time.Second
)

// EpisodeStore is the read side of the episode log.
type EpisodeStore interface {
	Episodes(limit int) ([]episodelog.Episode, error)
	Steps(id uuid.UUID) ([]reinforcement.StepRecord, error)
}

// Server serves the stats of a single rollout to any number of clients.
type Server struct {
	addr     string
	ctx      context.Context
	stats    *stream.Hub[reinforcement.Stats]
	episodes EpisodeStore
	router   *mux.Router
}

// NewServer builds the routes. A nil episode store disables the episode endpoints.
// Websocket clients are disconnected when ctx is done.
func NewServer(
	ctx context.Context,
	addr string,
	stats *stream.Hub[reinforcement.Stats],
	episodes EpisodeStore,
) *Server {
	server := &Server{
		addr:     addr,
		ctx:      ctx,
		stats:    stats,
		episodes: episodes,
		router:   mux.NewRouter(),
	}

	server.router.HandleFunc("/stats", server.serveStats).Methods(http.MethodGet)
	server.router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	server.router.HandleFunc("/episodes", server.serveEpisodes).Methods(http.MethodGet)
	server.router.HandleFunc("/episodes/{id}/steps", server.serveSteps).Methods(http.MethodGet)
	return server
}

// Handler returns the routes, for embedding or testing.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens on the server's address until ctx is done.
func (server *Server) Serve() (err error) {
	httpServer := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
	}

	go func() {
		<-server.ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Println("shutdown:", err)
		}
	}()

	if err = httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (server *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	stats, _ := server.stats.Latest()
	writeJSON(w, stats)
}

// serveWebsocket pushes each new stats snapshot to the client until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(server.ctx)
	defer cancel()

	cli, err := stream.NewClient(ctx, server.stats.Subscribe(ctx), w, r)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}

	if err = cli.Sync(); err != nil {
		log.Println("websocket:", err)
	}
}

func (server *Server) serveEpisodes(w http.ResponseWriter, r *http.Request) {
	if server.episodes == nil {
		http.Error(w, "episode log disabled", http.StatusNotFound)
		return
	}

	limit := DEFAULT_EPISODE_LIMIT
	if val := r.URL.Query().Get("limit"); val != "" {
		var err error
		if limit, err = strconv.Atoi(val); err != nil || limit <= 0 {
			http.Error(w, fmt.Sprintf("invalid limit %q", val), http.StatusBadRequest)
			return
		}
		limit = min(limit, MAX_EPISODE_LIMIT)
	}

	episodes, err := server.episodes.Episodes(limit)
	if err != nil {
		log.Println("episodes:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, episodes)
}

func (server *Server) serveSteps(w http.ResponseWriter, r *http.Request) {
	if server.episodes == nil {
		http.Error(w, "episode log disabled", http.StatusNotFound)
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	steps, err := server.episodes.Steps(id)
	if errors.Is(err, episodelog.ErrEpisodeNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Println("steps:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, steps)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("encode:", err)
	}
}
