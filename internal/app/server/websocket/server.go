package websocket

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	cmap "github.com/orcaman/concurrent-map/v2"

	"persona-call-golang/internal/domain/history"
	"persona-call-golang/internal/domain/rag"
	log "persona-call-golang/logger"
)

// Server upgrades browser connections and runs one call per
// connection.
type Server struct {
	upgrader websocket.Upgrader
	port     int

	ragClient    *rag.Client
	historyStore *history.Store
	autoRecord   bool

	calls cmap.ConcurrentMap[string, *CallConn]
}

type ServerOption func(*Server)

// WithHistoryStore enables transcript persistence.
func WithHistoryStore(store *history.Store) ServerOption {
	return func(s *Server) {
		s.historyStore = store
	}
}

// WithAutoRecord controls the post-greeting auto-record policy for all
// calls.
func WithAutoRecord(enabled bool) ServerOption {
	return func(s *Server) {
		s.autoRecord = enabled
	}
}

func NewServer(port int, ragClient *rag.Client, opts ...ServerOption) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		port:       port,
		ragClient:  ragClient,
		autoRecord: true,
		calls:      cmap.New[*CallConn](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start blocks serving websocket calls.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/call/v1/", s.handleCall)

	listenAddr := fmt.Sprintf("0.0.0.0:%d", s.port)
	log.Infof("call gateway listening on ws://%s/call/v1/", listenAddr)
	return http.ListenAndServe(listenAddr, mux)
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("websocket upgrade failed: %v", err)
		return
	}

	cc := newCallConn(context.Background(), s, conn)
	s.calls.Set(cc.callID, cc)
	cc.run()
}

// ActiveCalls reports how many calls are live.
func (s *Server) ActiveCalls() int {
	return s.calls.Count()
}

func (s *Server) unregister(callID string) {
	s.calls.Remove(callID)
}
