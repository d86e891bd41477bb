package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mattsolo1/grove-elements/pkg/api"
	"github.com/mattsolo1/grove-elements/pkg/models"
	"github.com/mattsolo1/grove-elements/pkg/relay"
	"github.com/mattsolo1/grove-elements/pkg/store"
)

// Store is the persistence the REST handlers need. *store.Store satisfies it.
type Store interface {
	All(ctx context.Context) (*models.Collection, error)
	CreateItem(ctx context.Context, draft models.ItemDraft) (*models.Item, error)
	CreateFolder(ctx context.Context, draft models.FolderDraft) (*models.Folder, error)
	Update(ctx context.Context, id string, u models.Update) (models.Element, error)
}

// Server exposes the collection over REST and announces every write on the
// push hub.
type Server struct {
	store Store
	hub   *Hub
	log   logrus.FieldLogger
}

// New creates a server over st.
func New(st Store, log logrus.FieldLogger, hubSettings *HubSettings) *Server {
	return &Server{
		store: st,
		hub:   NewHub(log.WithField("component", "hub"), st.All, hubSettings),
		log:   log,
	}
}

// Hub returns the push hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP routes: the REST API under /api and the push
// channel at /socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/elements", s.handleElements)
	mux.HandleFunc("POST /api/items", s.handleCreateItem)
	mux.HandleFunc("POST /api/folders", s.handleCreateFolder)
	mux.HandleFunc("PUT /api/items/{id}", s.handleUpdate(models.KindItem))
	mux.HandleFunc("PUT /api/folders/{id}", s.handleUpdate(models.KindFolder))
	mux.Handle("GET /socket", s.hub)
	return s.withCORS(s.withLogging(mux))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s.log.WithField("addr", ln.Addr().String()).Info("serving elements api")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

func (s *Server) handleElements(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.All(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var draft models.ItemDraft
	if err := decodeBody(r, &draft); err != nil {
		s.writeError(w, err)
		return
	}
	it, err := s.store.CreateItem(r.Context(), draft)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
	s.hub.Broadcast(relay.EventItemCreated, it)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	// isOpen defaults to true when omitted.
	draft := models.FolderDraft{IsOpen: true}
	if err := decodeBody(r, &draft); err != nil {
		s.writeError(w, err)
		return
	}
	f, err := s.store.CreateFolder(r.Context(), draft)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
	s.hub.Broadcast(relay.EventFolderCreated, f)
}

func (s *Server) handleUpdate(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		u := models.Update{Kind: kind}
		if err := decodeBody(r, &u); err != nil {
			s.writeError(w, err)
			return
		}
		el, err := s.store.Update(r.Context(), id, u)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if kind == models.KindItem {
			writeJSON(w, http.StatusOK, el.Item)
		} else {
			writeJSON(w, http.StatusOK, el.Folder)
		}
		s.hub.Broadcast(relay.UpdatedEvent(kind), relay.UpdateNotice{ID: id, Kind: kind, Updates: u})
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		status := http.StatusBadRequest
		if errors.Is(err, models.ErrCycle) {
			status = http.StatusConflict
		}
		writeJSON(w, status, api.ErrorBody{Error: verr.Message, Field: verr.Field, Cycle: errors.Is(err, models.ErrCycle)})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, api.ErrorBody{Error: err.Error()})
	default:
		s.log.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, api.ErrorBody{Error: "internal error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return &models.ValidationError{Message: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
