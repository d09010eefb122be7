package game

import (
	"fmt"
	"strings"
	"time"
)

// SenderType classifies the origin of a chat message.
const (
	SenderPlayer = "player"
	SenderUnit   = "unit"
	SenderSystem = "system"
)

// ChatMessage is a single chat record.
type ChatMessage struct {
	Sender     string `json:"sender"`
	Content    string `json:"content"`
	SenderType string `json:"sender_type"`
	Timestamp  string `json:"timestamp"`
}

// ChatHistory stores the ordered chat log of a match.
type ChatHistory struct {
	messages []ChatMessage
}

// NewChatHistory returns a history seeded with a system welcome message.
func NewChatHistory() *ChatHistory {
	h := &ChatHistory{}
	h.Add("system", "Welcome to GPT Generals! Type your commands to control units.", SenderSystem)
	return h
}

// Add appends a message and returns it with the server timestamp filled in.
func (h *ChatHistory) Add(sender, content, senderType string) ChatMessage {
	if senderType == "" {
		senderType = SenderPlayer
	}
	msg := ChatMessage{
		Sender:     sender,
		Content:    content,
		SenderType: senderType,
		Timestamp:  fmt.Sprintf("%d", time.Now().Unix()),
	}
	h.messages = append(h.messages, msg)
	return msg
}

// LastN returns the most recent n messages, oldest first.
func (h *ChatHistory) LastN(n int) []ChatMessage {
	if n >= len(h.messages) {
		return append([]ChatMessage(nil), h.messages...)
	}
	return append([]ChatMessage(nil), h.messages[len(h.messages)-n:]...)
}

// All returns every message, oldest first.
func (h *ChatHistory) All() []ChatMessage {
	return append([]ChatMessage(nil), h.messages...)
}

// Format renders a message for terminal display.
func (h *ChatHistory) Format(msg ChatMessage) string {
	switch msg.SenderType {
	case SenderSystem:
		return fmt.Sprintf("SYSTEM: %s", msg.Content)
	case SenderUnit:
		return fmt.Sprintf("UNIT %s: %s", msg.Sender, msg.Content)
	default:
		return fmt.Sprintf("%s: %s", msg.Sender, msg.Content)
	}
}

// FormatAll renders up to max recent messages, one per line. A max of zero
// renders the whole history.
func (h *ChatHistory) FormatAll(max int) string {
	msgs := h.messages
	if max > 0 && max < len(msgs) {
		msgs = msgs[len(msgs)-max:]
	}

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, h.Format(m))
	}
	return strings.Join(lines, "\n")
}
