package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"nhooyr.io/websocket"

	"github.com/skobkin/proctop-web/internal/api"
	"github.com/skobkin/proctop-web/internal/monitor"
)

// replyQueueSize bounds answers to client requests waiting for the writer.
const replyQueueSize = 8

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	reqLogger := s.loggerFromContext(r.Context())
	if !allowGet(w, r) {
		return
	}
	if s.monitor == nil {
		http.Error(w, "monitor unavailable", http.StatusServiceUnavailable)
		return
	}
	if !s.acquireSession() {
		reqLogger.Warn("websocket rejected", "reason", "capacity")
		http.Error(w, "websocket capacity reached", http.StatusServiceUnavailable)
		return
	}
	defer s.releaseSession()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.cfg.AllowedOrigins),
	})
	if err != nil {
		reqLogger.Warn("websocket accept failed", "err", err)
		return
	}
	s.wsTotal.Add(1)

	session := &wsSession{
		server:  s,
		conn:    conn,
		logger:  reqLogger.With("ws_id", s.wsConnIDs.Add(1)),
		replies: make(chan any, replyQueueSize),
	}
	session.serve(r.Context())
}

// acquireSession takes a connection slot. wsSlots is nil when unlimited.
func (s *Server) acquireSession() bool {
	if s.wsSlots != nil {
		select {
		case s.wsSlots <- struct{}{}:
		default:
			s.wsRejected.Add(1)
			return false
		}
	}
	s.wsActive.Add(1)
	return true
}

func (s *Server) releaseSession() {
	s.wsActive.Add(-1)
	if s.wsSlots != nil {
		<-s.wsSlots
	}
}

// wsSession streams snapshots to one client. The request handler goroutine
// owns every write; the read goroutine only decodes requests and queues
// their answers on replies.
type wsSession struct {
	server  *Server
	conn    *websocket.Conn
	logger  *slog.Logger
	replies chan any
}

func (ws *wsSession) serve(parent context.Context) {
	defer ws.close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	snapshots, unsubscribe := ws.server.monitor.Subscribe()
	defer unsubscribe()

	if err := ws.send(ctx, ws.hello()); err != nil {
		ws.logWriteError(err)
		return
	}
	ws.logger.Info("ws subscribed")

	readErr := make(chan error, 1)
	go func() {
		readErr <- ws.readRequests(ctx)
	}()

	for {
		var payload any
		select {
		case <-ctx.Done():
			return
		case err := <-readErr:
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				ws.logger.Warn("websocket read error", "err", err)
			}
			return
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			payload = api.NewSnapshotMessage(snapshot)
		case payload = <-ws.replies:
		}
		if err := ws.send(ctx, payload); err != nil {
			ws.logWriteError(err)
			return
		}
	}
}

func (ws *wsSession) hello() api.HelloMessage {
	cfg := ws.server.cfg
	return api.NewHelloMessage(
		int(cfg.SampleInterval.Milliseconds()),
		ws.server.monitor.ClockTicks(),
		map[string]bool{
			"prometheus": cfg.EnablePrometheus,
			"processes":  true,
		},
	)
}

// readRequests runs until the client goes away or stays silent past the
// read timeout, which closes the connection.
func (ws *wsSession) readRequests(ctx context.Context) error {
	for {
		readCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout := ws.server.cfg.WS.ReadTimeout; timeout > 0 {
			readCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		msgType, data, err := ws.conn.Read(readCtx)
		cancel()
		if err != nil {
			return err
		}
		if msgType == websocket.MessageText {
			ws.dispatch(data)
		}
	}
}

// dispatch answers a single client request.
func (ws *wsSession) dispatch(data []byte) {
	var req api.ClientMessage
	if err := json.Unmarshal(data, &req); err != nil {
		ws.logger.Debug("invalid client message", "err", err)
		ws.reply(api.NewErrorMessage("invalid message"))
		return
	}

	switch req.Type {
	case api.TypePing:
		ws.reply(api.PongMessage{Type: api.TypePong})
	case api.TypeSnapshot:
		ws.reply(latestOrError(ws.server.monitor))
	default:
		ws.logger.Debug("unknown message type", "type", req.Type)
	}
}

func latestOrError(m *monitor.Manager) any {
	snapshot, ok := m.Latest()
	if !ok {
		return api.NewErrorMessage("no snapshot available")
	}
	return api.NewSnapshotMessage(snapshot)
}

// reply queues payload for the writer, dropping it when the client is not
// draining its answers.
func (ws *wsSession) reply(payload any) {
	select {
	case ws.replies <- payload:
	default:
		ws.server.wsDropped.Add(1)
		ws.logger.Debug("reply dropped", "type", fmt.Sprintf("%T", payload))
	}
}

func (ws *wsSession) send(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", payload, err)
	}
	if timeout := ws.server.cfg.WS.WriteTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := ws.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return err
	}
	ws.server.wsSent.Add(1)
	return nil
}

func (ws *wsSession) logWriteError(err error) {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
		return
	}
	ws.logger.Warn("websocket write failed", "err", err)
}

func (ws *wsSession) close() {
	if err := ws.conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		ws.logger.Debug("websocket close failed", "err", err)
	}
}

// originPatterns collapses the list to a single wildcard when one is present.
func originPatterns(origins []string) []string {
	if slices.Contains(origins, "*") {
		return []string{"*"}
	}
	return slices.Clone(origins)
}
