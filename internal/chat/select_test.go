package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationIDFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"conversation route", "https://example.test/chat/f5e7a1b2", "f5e7a1b2"},
		{"trailing slash", "https://example.test/chat/f5e7a1b2/", "f5e7a1b2"},
		{"uuid id", "https://example.test/chat/0b8c0f56-3a1d-4a0e-9cbe-6f1f6f0a2d11", "0b8c0f56-3a1d-4a0e-9cbe-6f1f6f0a2d11"},
		{"query ignored", "https://example.test/chat/abc123?tab=1", "abc123"},
		{"menu route", "https://example.test/chat", ""},
		{"login route", "https://example.test/login", ""},
		{"nested path", "https://example.test/chat/abc/messages", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConversationIDFromURL(tt.url))
		})
	}
}
