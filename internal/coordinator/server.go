package coordinator

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ajramos/chatfolders/internal/config"
	"github.com/ajramos/chatfolders/internal/engine"
	"github.com/ajramos/chatfolders/internal/folders"
	"github.com/ajramos/chatfolders/internal/hostdom"
	"github.com/ajramos/chatfolders/internal/services"
)

const (
	opFlushInterval = 50 * time.Millisecond
	writeTimeout    = 5 * time.Second
)

// agentMsg is one inbound message from the browser agent
type agentMsg struct {
	Type     string `json:"type"`
	HTML     string `json:"html,omitempty"`
	FolderID string `json:"folderId,omitempty"`
	Action   string `json:"action,omitempty"`
	Name     string `json:"name,omitempty"`
	Error    string `json:"error,omitempty"`
}

// opsMsg is the outbound DOM operation batch for the agent
type opsMsg struct {
	Type string       `json:"type"`
	Ops  []hostdom.Op `json:"ops"`
}

// Server accepts browser-agent connections and binds each one to its own
// page engine.
type Server struct {
	cfg    *config.Config
	coord  *Coordinator
	logger *log.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// NewServer creates the agent endpoint server
func NewServer(cfg *config.Config, coord *Coordinator, logger *log.Logger) *Server {
	return &Server{
		cfg:    cfg,
		coord:  coord,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 16,
			// The endpoint binds to loopback; the agent connects from the
			// host page's origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start serves the agent WebSocket endpoint until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/agent", func(w http.ResponseWriter, r *http.Request) {
		s.handleAgent(ctx, w, r)
	})

	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// handleAgent runs one agent session: a mirror page, a folder service and
// an engine, all torn down when the connection closes.
func (s *Server) handleAgent(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logf("agent upgrade: %v", err)
		return
	}
	defer conn.Close()

	sel := s.cfg.Selectors
	page := hostdom.NewPage(hostdom.Selectors{
		ListRoot:      sel.ListRoot,
		Row:           sel.Row,
		RowName:       sel.RowName,
		RowBadge:      sel.RowBadge,
		Header:        sel.Header,
		FolderBarAttr: sel.FolderBar,
	})
	svc := services.NewFolderService(s.coord, s.logger)
	subID, broadcasts := s.coord.Subscribe()
	eng := engine.New(s.cfg, page, svc, s.coord, broadcasts, s.logger)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := eng.Start(sessionCtx); err != nil {
		s.logf("agent session start: %v", err)
		s.coord.Unsubscribe(subID)
		return
	}
	defer func() {
		eng.Stop()
		s.coord.Unsubscribe(subID)
		page.Close()
	}()

	// Writer: flushes accumulated DOM ops to the agent.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(opFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sessionCtx.Done():
				return
			case <-ticker.C:
				ops := page.DrainOps()
				if len(ops) == 0 {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(opsMsg{Type: "ops", Ops: ops}); err != nil {
					s.logf("agent write: %v", err)
					cancel()
					return
				}
			}
		}
	}()

	// Reader: applies agent events to the mirror and the engine.
	for {
		var msg agentMsg
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logf("agent read: %v", err)
			}
			break
		}
		s.dispatch(page, eng, msg)
	}

	cancel()
	<-writerDone
}

func (s *Server) dispatch(page *hostdom.Page, eng *engine.Engine, msg agentMsg) {
	switch msg.Type {
	case "snapshot":
		if err := page.ApplySnapshot(msg.HTML); err != nil {
			s.logf("snapshot: %v", err)
		}
	case "listUpdate":
		if err := page.ApplyListUpdate(msg.HTML); err != nil {
			s.logf("listUpdate: %v", err)
		}
	case "attrs":
		page.NotifyAttributesChanged()
	case "activity":
		eng.MarkActivity()
	case "folderClick":
		eng.MarkActivity()
		eng.SelectFolder(msg.FolderID)
	case "chatAction":
		eng.MarkActivity()
		eng.HandleChatAction(msg.Action, folders.CaptureName(msg.Name), msg.FolderID)
	case "rowClick":
		eng.OnRowClicked()
	case "stylesError":
		// Degraded, not fatal: the page runs unstyled.
		s.logf("agent stylesheet failed to load: %s", msg.Error)
	default:
		s.logf("agent sent unknown message type %q", msg.Type)
	}
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
