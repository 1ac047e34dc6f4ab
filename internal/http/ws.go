package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"spendwise/internal/aggregate"
	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	// clients only send close and pong frames
	maxMessageSize = 512
)

// snapshotMessage is pushed on connect and after every write to the owner's
// ledger.
type snapshotMessage struct {
	Summary      snapshotSummary       `json:"summary"`
	Transactions []transactionResponse `json:"transactions"`
}

type snapshotSummary struct {
	Year       int                `json:"year"`
	Month      int                `json:"month"`
	Totals     totalsResponse     `json:"totals"`
	Categories []categoryResponse `json:"categories"`
}

func (s *Server) snapshotMessage(txs []core.Transaction) snapshotMessage {
	loc := s.svc.Ledger.Location()
	p := core.PeriodOf(s.now(), loc)
	month := aggregate.PeriodFilter(txs, p, loc)
	return snapshotMessage{
		Summary: snapshotSummary{
			Year:       p.Year,
			Month:      int(p.Month),
			Totals:     newTotals(aggregate.Totals(month)),
			Categories: newCategories(aggregate.CategoryTotals(month)),
		},
		Transactions: newTransactionList(txs, loc),
	}
}

// handleSnapshots upgrades GET /ws/snapshots?token= and streams the owner's
// snapshots until either side goes away. Browsers cannot set headers on a
// websocket handshake, hence the token in the query.
func (s *Server) handleSnapshots(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		writeError(c, auth.ErrInvalidToken)
		return
	}
	if err := s.authenticate(c, token); err != nil {
		writeError(c, err)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if s.opts.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == s.opts.AllowedOrigin
		},
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WarnContext(c.Request.Context(), "Websocket upgrade failed", log.FieldError, err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentWebsocket)

	// Holds at most the latest snapshot; a slow client skips intermediate ones.
	send := make(chan []byte, 1)
	cancel, err := s.svc.Ledger.Subscribe(ctx, func(txs []core.Transaction) {
		payload, err := json.Marshal(s.snapshotMessage(txs))
		if err != nil {
			logger.Error("Snapshot encoding failed", log.FieldError, err)
			return
		}
		select {
		case <-send:
		default:
		}
		select {
		case send <- payload:
		default:
		}
	})
	if err != nil {
		logger.WarnContext(ctx, "Snapshot subscription failed", log.FieldError, err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(writeWait))
		return
	}
	defer cancel()

	logger.InfoContext(ctx, "Snapshot stream opened")
	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, send, done)
	logger.InfoContext(ctx, "Snapshot stream closed")
}

// readPump discards client frames and closes done when the peer leaves or
// stops answering pings.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case payload := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
