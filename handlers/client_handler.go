package handlers

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gridrealm/server/logger"
	"gridrealm/server/messages"
	"gridrealm/server/models"
	"gridrealm/server/network"
	"gridrealm/server/services"
)

// World is the part of the simulation a session drives
type World interface {
	Join(playerID int, name, class string) (messages.PlayerState, error)
	RemovePlayer(playerID int) bool
	MovePlayer(playerID int, newPos models.Position) error
	UsePotion(playerID int, kind string) error
	ActivateAbility(playerID int, ability string) error
	Attack(playerID int, target models.Position) error
	Chat(playerID int, text string) error
}

// ClientHandler manages a single client connection
type ClientHandler struct {
	id             int
	sessionKey     uuid.UUID
	conn           *network.Connection
	world          World
	clientManager  *ClientManager
	joined         atomic.Bool
	disconnectOnce sync.Once
}

// HandleClientConnection runs a session until the connection closes. It
// blocks, so callers run it on the connection's own goroutine.
func HandleClientConnection(wsConn *websocket.Conn, codec messages.Codec, maxMessageSize int64, world World, clientManager *ClientManager) {
	conn := network.NewConnection(wsConn, codec, maxMessageSize)
	handler := &ClientHandler{
		sessionKey:    uuid.New(),
		conn:          conn,
		world:         world,
		clientManager: clientManager,
	}

	go conn.WritePump()

	// The welcome is queued before the handler joins the broadcast set so
	// it is always the first frame the client sees.
	id, err := clientManager.Register(handler, func(id int) {
		conn.SendMessage(messages.New(messages.MessageTypeWelcome, messages.WelcomeMessage{
			PlayerID: id,
			Message:  fmt.Sprintf("Welcome! You are player %d", id),
		}))
	})
	if err != nil {
		logger.Warning("Rejecting connection", "remote", conn.RemoteAddr(), "error", err)
		conn.SendMessage(messages.NewError(messages.CodeServerFull, "Server is full"))
		conn.Close()
		return
	}

	logger.Info("New connection", "player_id", id, "session", handler.sessionKey.String(), "remote", conn.RemoteAddr())

	conn.ReadPump(handler)
	handler.Disconnect()
}

// ID returns the session ID, which is also the player ID once joined
func (h *ClientHandler) ID() int {
	return h.id
}

// Send queues a message for this client
func (h *ClientHandler) Send(msg interface{}) error {
	return h.conn.SendMessage(msg)
}

// Disconnect unregisters the session, removes its player and closes the
// connection. Only the first call has any effect.
func (h *ClientHandler) Disconnect() {
	h.disconnectOnce.Do(func() {
		h.clientManager.Unregister(h.id)
		if h.joined.Load() {
			h.world.RemovePlayer(h.id)
		}
		h.conn.Close()
		logger.Info("Client disconnected", "player_id", h.id, "session", h.sessionKey.String())
	})
}

// HandleMessage handles incoming messages from the client
func (h *ClientHandler) HandleMessage(conn *network.Connection, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while handling message", "player_id", h.id, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	var baseMsg messages.BaseMessage
	if err := conn.Codec().Unmarshal(message, &baseMsg); err != nil {
		logger.Warning("Error decoding message", "player_id", h.id, "error", err)
		h.sendError(messages.CodeMalformed, "Message could not be decoded")
		return
	}

	switch baseMsg.Type {
	case messages.MessageTypeJoinGame:
		h.handleJoin(baseMsg.Payload)
	case messages.MessageTypeMoveRequest:
		h.handleMove(baseMsg.Payload)
	case messages.MessageTypeUsePotion:
		h.handleUsePotion(baseMsg.Payload)
	case messages.MessageTypeActivateAbility:
		h.handleAbility(baseMsg.Payload)
	case messages.MessageTypeAttackRequest:
		h.handleAttack(baseMsg.Payload)
	case messages.MessageTypeChat:
		h.handleChat(baseMsg.Payload)
	case messages.MessageTypeDisconnect:
		logger.Debug("Client requested disconnect", "player_id", h.id)
		h.conn.Close()
	default:
		logger.Warning("Unknown message type", "player_id", h.id, "type", string(baseMsg.Type))
		h.sendError(messages.CodeUnknownMessageType, "Unknown message type received")
	}
}

// decode converts the generic payload into v, answering a malformed
// message error on failure
func (h *ClientHandler) decode(payload interface{}, v interface{}) bool {
	if err := messages.DecodePayload(h.conn.Codec(), payload, v); err != nil {
		logger.Warning("Error decoding payload", "player_id", h.id, "error", err)
		h.sendError(messages.CodeMalformed, err.Error())
		return false
	}
	return true
}

// requireJoined answers NOT_JOINED for requests sent before join_game
func (h *ClientHandler) requireJoined() bool {
	if !h.joined.Load() {
		h.sendError(messages.CodeNotJoined, "Join the game first")
		return false
	}
	return true
}

func (h *ClientHandler) handleJoin(payload interface{}) {
	if h.joined.Load() {
		h.sendError(messages.CodeJoinFailed, services.ErrAlreadyJoined.Error())
		return
	}
	var joinMsg messages.JoinGameMessage
	if !h.decode(payload, &joinMsg) {
		return
	}

	// Marked before Join so a disconnect racing the join still removes
	// the player.
	h.joined.Store(true)
	if _, err := h.world.Join(h.id, joinMsg.Name, joinMsg.Class); err != nil {
		if !errors.Is(err, services.ErrAlreadyJoined) {
			h.joined.Store(false)
		}
		logger.Warning("Join failed", "player_id", h.id, "error", err)
		h.sendError(messages.CodeJoinFailed, err.Error())
	}
}

func (h *ClientHandler) handleMove(payload interface{}) {
	if !h.requireJoined() {
		return
	}
	var moveMsg messages.MoveRequestMessage
	if !h.decode(payload, &moveMsg) {
		return
	}
	if err := h.world.MovePlayer(h.id, moveMsg.Position); err != nil {
		logger.Debug("Move rejected", "player_id", h.id, "position", moveMsg.Position.String(), "error", err)
		h.Send(messages.New(messages.MessageTypeMoveFailed, messages.ErrorMessage{
			Code:    messages.CodeMoveFailed,
			Message: err.Error(),
		}))
	}
}

func (h *ClientHandler) handleUsePotion(payload interface{}) {
	if !h.requireJoined() {
		return
	}
	var potionMsg messages.UsePotionMessage
	if !h.decode(payload, &potionMsg) {
		return
	}
	if err := h.world.UsePotion(h.id, potionMsg.Kind); err != nil {
		h.sendError(messages.CodePotionFailed, err.Error())
	}
}

func (h *ClientHandler) handleAbility(payload interface{}) {
	if !h.requireJoined() {
		return
	}
	var abilityMsg messages.ActivateAbilityMessage
	if !h.decode(payload, &abilityMsg) {
		return
	}
	if err := h.world.ActivateAbility(h.id, abilityMsg.Kind); err != nil {
		h.sendError(messages.CodeAbilityFailed, err.Error())
	}
}

func (h *ClientHandler) handleAttack(payload interface{}) {
	if !h.requireJoined() {
		return
	}
	var attackMsg messages.AttackRequestMessage
	if !h.decode(payload, &attackMsg) {
		return
	}
	if err := h.world.Attack(h.id, attackMsg.Position); err != nil {
		h.sendError(errorCode(err), err.Error())
	}
}

func (h *ClientHandler) handleChat(payload interface{}) {
	if !h.requireJoined() {
		return
	}
	var chatMsg messages.ChatMessage
	if !h.decode(payload, &chatMsg) {
		return
	}
	if err := h.world.Chat(h.id, chatMsg.Message); err != nil {
		h.sendError(errorCode(err), err.Error())
	}
}

func (h *ClientHandler) sendError(code, message string) {
	if err := h.conn.SendMessage(messages.NewError(code, message)); err != nil {
		logger.Debug("Error sending error message", "player_id", h.id, "error", err)
	}
}

// errorCode maps world errors onto wire error codes
func errorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrPlayerNotFound):
		return messages.CodeNotJoined
	case errors.Is(err, services.ErrInvalidMove):
		return messages.CodeMoveFailed
	case errors.Is(err, services.ErrNoTarget),
		errors.Is(err, services.ErrOutOfRange),
		errors.Is(err, services.ErrAlreadyInCombat),
		errors.Is(err, services.ErrTargetEngaged):
		return messages.CodeCombatFailed
	case errors.Is(err, services.ErrUnknownAbility), errors.Is(err, services.ErrAbilityActive):
		return messages.CodeAbilityFailed
	case errors.Is(err, services.ErrUnknownPotion), errors.Is(err, services.ErrPotionUnavailable):
		return messages.CodePotionFailed
	case errors.Is(err, services.ErrAlreadyJoined), errors.Is(err, services.ErrWorldFull):
		return messages.CodeJoinFailed
	}
	return messages.CodeMalformed
}
