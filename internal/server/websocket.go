package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/models"
	"github.com/hairguard/hairguard/internal/service"
)

// Websocket message types.
const (
	MsgAuth       = "auth"
	MsgAuthOK     = "auth_ok"
	MsgChat       = "chat"
	MsgChatResult = "chat_result"
	MsgError      = "error"

	wsReadLimit = 64 << 10
)

// wsMessage is the envelope of every frame in both directions.
type wsMessage struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// handleWebSocket runs the mental-shield chat over one connection. The first
// frame must authenticate; every chat frame after that gets one reply.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	clientID := uuid.New().String()
	s.clients.Store(clientID, conn)
	defer s.clients.Delete(clientID)

	uid := ""
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", zap.String("client", clientID), zap.Error(err))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendError(conn, "Invalid message format")
			continue
		}

		switch msg.Type {
		case MsgAuth:
			uid = s.handleWSAuth(r, conn, msg.Data)
		case MsgChat:
			if uid == "" {
				s.sendError(conn, "Missing bearer token")
				continue
			}
			s.handleWSChat(r, conn, uid, msg.Data)
		default:
			s.sendError(conn, "Unknown message type")
		}
	}
}

func (s *Server) handleWSAuth(r *http.Request, conn *websocket.Conn, data json.RawMessage) string {
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		s.sendError(conn, "Missing bearer token")
		return ""
	}
	uid, err := s.verify(r.Context(), payload.Token)
	if err != nil {
		_, detail := service.StatusOf(err)
		s.sendError(conn, detail)
		return ""
	}
	s.sendMessage(conn, MsgAuthOK, map[string]string{"uid": uid})
	return uid
}

func (s *Server) handleWSChat(r *http.Request, conn *websocket.Conn, uid string, data json.RawMessage) {
	var req models.MentalShieldRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(conn, "Invalid request body")
		return
	}
	resp, err := s.svc.Shield.Chat(r.Context(), uid, req)
	if err != nil {
		status, detail := service.StatusOf(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("websocket chat failed", zap.Error(err))
		}
		s.sendError(conn, detail)
		return
	}
	s.sendMessage(conn, MsgChatResult, resp)
}

func (s *Server) sendMessage(conn *websocket.Conn, messageType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to encode websocket message", zap.Error(err))
		return
	}
	if err := conn.WriteJSON(wsMessage{Type: messageType, Data: payload}); err != nil {
		s.logger.Warn("error sending message", zap.Error(err))
	}
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	if err := conn.WriteJSON(wsMessage{Type: MsgError, Message: message}); err != nil {
		s.logger.Warn("error sending error message", zap.Error(err))
	}
}
