package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"candle-replay/src/backtest"
	"candle-replay/src/interfaces"
	"candle-replay/src/logger"
	"candle-replay/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

// -----------------------------------------------------------------------------
// ReplayServer
// -----------------------------------------------------------------------------

// ReplayServer hosts the websocket replay sessions and the REST endpoints.
type ReplayServer struct {
	Config   *models.MConfig
	Logger   *logger.Logger
	Source   interfaces.ICandleSource
	Ledger   interfaces.ILedgerStore
	Provider interfaces.IDataProvider

	engine     *gin.Engine
	httpServer *http.Server
	hub        *Hub

	mu       sync.RWMutex
	sessions map[string]*backtest.Session
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewReplayServer(
	cfg *models.MConfig,
	log *logger.Logger,
	source interfaces.ICandleSource,
	ledger interfaces.ILedgerStore,
	provider interfaces.IDataProvider,
) *ReplayServer {
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &ReplayServer{
		Config:   cfg,
		Logger:   log,
		Source:   source,
		Ledger:   ledger,
		Provider: provider,
		engine:   gin.New(),
		hub:      NewHub(log.Named("Hub")),
		sessions: make(map[string]*backtest.Session),
	}
	s.engine.Use(gin.Recovery())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *ReplayServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)
	api.GET("/sessions", s.getSessions)
	api.POST("/load_data", s.postLoadData)

	s.engine.GET("/ws/socket", s.handleWebSocket)
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler returns the routes wrapped with the CORS policy.
func (s *ReplayServer) Handler() http.Handler {
	policy := cors.New(cors.Options{
		AllowOriginFunc:  isLocalOrigin,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
	})
	return policy.Handler(s.engine)
}

func isLocalOrigin(origin string) bool {
	for _, prefix := range []string{"http://127.0.0.1", "http://localhost", "https://127.0.0.1", "https://localhost"} {
		if origin == prefix || strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves until Shutdown is called.
func (s *ReplayServer) Start() error {
	s.Logger.Info("Starting replay server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Shutdown stops accepting requests, disconnects every websocket and cancels
// every session.
func (s *ReplayServer) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.hub.CloseAll()

	s.mu.Lock()
	sessions := make([]*backtest.Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		sessions = append(sessions, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}

	s.Logger.Info("Replay server stopped (%d sessions cancelled)", len(sessions))
	return err
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) handleWebSocket(c *gin.Context) {
	watch := strings.TrimSpace(c.Query("watch"))
	if watch != "" {
		if _, ok := s.session(watch); !ok {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "unknown session " + watch})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	if watch != "" {
		s.attachViewer(conn, watch)
		return
	}
	s.attachOwner(conn)
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) attachOwner(conn *websocket.Conn) {
	id := uuid.NewString()
	client := newClient(s, conn, id)

	client.session = backtest.NewSession(backtest.SessionOptions{
		ID:           id,
		DefaultSpeed: s.Config.Replay.DefaultSpeed,
		MaxSpeed:     s.Config.Replay.MaxSpeed,
		DefaultFile:  s.Config.Replay.DefaultFile,
		Source:       s.Source,
		Ledger:       s.Ledger,
		Sink:         client,
		Publisher:    s.hub,
		Logger:       s.Logger.Named("Session"),
	})

	s.mu.Lock()
	s.sessions[id] = client.session
	s.mu.Unlock()
	s.hub.Subscribe(id, client)

	client.Send(models.MConnectedEvent{Status: models.StatusConnected, SessionID: id})
	s.Logger.Info("Session %s connected from %s", id, conn.RemoteAddr())

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) attachViewer(conn *websocket.Conn, id string) {
	client := newClient(s, conn, id)
	s.hub.Subscribe(id, client)

	// the session may have ended between the lookup and the subscription
	if _, ok := s.session(id); !ok {
		s.hub.Unsubscribe(id, client)
		conn.WriteJSON(models.NewErrorEvent("unknown session " + id))
		conn.Close()
		return
	}

	client.Send(models.MConnectedEvent{Status: models.StatusConnected, SessionID: id, ReadOnly: true})
	s.Logger.Info("Viewer joined session %s", id)

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------

// release detaches a disconnected client. When the owner leaves, its session
// is cancelled and its viewers are disconnected.
func (s *ReplayServer) release(c *Client) {
	s.hub.Unsubscribe(c.group, c)
	c.Close()

	if c.session == nil {
		return
	}

	s.mu.Lock()
	delete(s.sessions, c.group)
	s.mu.Unlock()

	c.session.Close()
	s.hub.CloseGroup(c.group)
	s.Logger.Info("Session %s disconnected", c.group)
}

// -----------------------------------------------------------------------------
// Session Registry
// -----------------------------------------------------------------------------

func (s *ReplayServer) session(id string) (*backtest.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *ReplayServer) snapshotOf(sess *backtest.Session) models.MSessionSnapshot {
	snap := sess.Snapshot()
	if viewers := s.hub.Count(sess.ID()) - 1; viewers > 0 {
		snap.Viewers = viewers
	}
	return snap
}

// Snapshots lists every live session, ordered by id.
func (s *ReplayServer) Snapshots() []models.MSessionSnapshot {
	s.mu.RLock()
	sessions := make([]*backtest.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	out := make([]models.MSessionSnapshot, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, s.snapshotOf(sess))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

func (s *ReplayServer) Snapshot(id string) (models.MSessionSnapshot, bool) {
	sess, ok := s.session(id)
	if !ok {
		return models.MSessionSnapshot{}, false
	}
	return s.snapshotOf(sess), true
}

// StopSession pauses the replay of id. It reports false when the session is
// unknown or not running.
func (s *ReplayServer) StopSession(id string) bool {
	sess, ok := s.session(id)
	if !ok {
		return false
	}
	return sess.Stop()
}

var _ interfaces.ISessionRegistry = (*ReplayServer)(nil)
