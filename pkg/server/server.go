package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"evmconnect/pkg/controller"
	"evmconnect/pkg/models"
	"evmconnect/pkg/provider"
	"evmconnect/pkg/store"
	"evmconnect/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Connector is the part of the controller the server drives.
type Connector interface {
	Connect(ctx context.Context) error
	DismissError()
}

type Server struct {
	ctrl    Connector
	store   *store.Store
	logger  *zap.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	mux     *http.ServeMux
}

func NewServer(ctrl Connector, st *store.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ctrl:    ctrl,
		store:   st,
		logger:  logger.With(zap.String("component", "server")),
		clients: make(map[*websocket.Conn]bool),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/connect", s.handleConnect)
	s.mux.HandleFunc("POST /api/error/dismiss", s.handleDismiss)
	s.mux.HandleFunc("/ws", s.handleWS)
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	go s.listenToStore()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("API server listening", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// stateView is the JSON form of a snapshot.
type stateView struct {
	models.WalletState
	models.Flags
	Version        uint64       `json:"version"`
	HasProvider    *bool        `json:"hasProvider"`
	Phase          models.Phase `json:"phase"`
	ChainIDDecimal string       `json:"chainIdDecimal,omitempty"`
}

func newStateView(snap models.Snapshot) stateView {
	return stateView{
		WalletState:    snap.WalletState,
		Flags:          snap.Flags,
		Version:        snap.Version,
		HasProvider:    snap.HasProvider(),
		Phase:          snap.Phase(),
		ChainIDDecimal: utils.ChainIDToDecimal(snap.ChainID),
	}
}

type message struct {
	Type string    `json:"type"`
	Data stateView `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateView(s.store.Snapshot()))
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	// A pending wallet prompt outlives the HTTP request.
	err := s.ctrl.Connect(context.WithoutCancel(r.Context()))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newStateView(s.store.Snapshot()))
	case errors.Is(err, controller.ErrConnectInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, provider.ErrProviderAbsent), errors.Is(err, controller.ErrStopped):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.ctrl.DismissError()
	writeJSON(w, http.StatusOK, newStateView(s.store.Snapshot()))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	s.clients[conn] = true
	err = conn.WriteJSON(message{Type: "initial", Data: newStateView(s.store.Snapshot())})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// listenToStore pushes every snapshot to the websocket clients until the
// store is disposed.
func (s *Server) listenToStore() {
	sub := s.store.Subscribe()
	defer s.store.Unsubscribe(sub)

	for snap := range sub {
		s.broadcast(message{Type: "state", Data: newStateView(snap)})
	}
}

func (s *Server) broadcast(msg message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(msg); err != nil {
			s.logger.Debug("Dropping websocket client", zap.Error(err))
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
