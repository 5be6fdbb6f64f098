package router

import (
	"testing"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

func TestMention(t *testing.T) {
	tests := []struct {
		in     string
		wantID agent.Identity
		rest   string
		ok     bool
	}{
		{"@cfo what should we charge?", agent.CFO, "what should we charge?", true},
		{"  @CTO: which stack?", agent.CTO, "which stack?", true},
		{"@architect, grid layout", agent.Architect, "grid layout", true},
		{"@cmo", agent.CMO, "", true},
		{"@ceo hello", "", "@ceo hello", false},
		{"@ctoX hello", "", "@ctoX hello", false},
		{"ask @cfo later", "", "ask @cfo later", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, rest, ok := Mention(tt.in)
			if id != tt.wantID || rest != tt.rest || ok != tt.ok {
				t.Errorf("Mention(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.in, id, rest, ok, tt.wantID, tt.rest, tt.ok)
			}
		})
	}
}
