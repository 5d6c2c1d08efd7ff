package services

import (
	"strings"
	"sync"
	"time"

	"gridrealm/server/logger"
	"gridrealm/server/messages"
)

const (
	maxChatLength  = 200
	maxChatHistory = 100
	systemSender   = "System"
)

// ChatService validates chat lines and keeps a bounded history
type ChatService struct {
	history []messages.ChatMessage
	now     func() time.Time
	mutex   sync.Mutex
}

// NewChatService creates an empty chat service
func NewChatService() *ChatService {
	return &ChatService{now: time.Now}
}

// Post records a player's line. Blank lines are ignored; long lines are cut.
func (cs *ChatService) Post(sender, text string) (messages.ChatMessage, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return messages.ChatMessage{}, false
	}
	if runes := []rune(text); len(runes) > maxChatLength {
		text = string(runes[:maxChatLength])
	}

	msg := messages.ChatMessage{Sender: sender, Message: text, Timestamp: cs.now().Unix()}
	cs.add(msg)
	logger.Always("Chat", "sender", sender, "message", text)
	return msg, true
}

// System records a server announcement
func (cs *ChatService) System(text string) messages.ChatMessage {
	msg := messages.ChatMessage{Sender: systemSender, Message: text, System: true, Timestamp: cs.now().Unix()}
	cs.add(msg)
	logger.Always("System chat", "message", text)
	return msg
}

// Recent returns up to count of the newest messages, oldest first
func (cs *ChatService) Recent(count int) []messages.ChatMessage {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	start := 0
	if count >= 0 && len(cs.history) > count {
		start = len(cs.history) - count
	}
	out := make([]messages.ChatMessage, len(cs.history)-start)
	copy(out, cs.history[start:])
	return out
}

func (cs *ChatService) add(msg messages.ChatMessage) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.history = append(cs.history, msg)
	if over := len(cs.history) - maxChatHistory; over > 0 {
		cs.history = append(cs.history[:0], cs.history[over:]...)
	}
}
