package bot

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"hello there", Command{Kind: KindChat, Text: "hello there"}},
		{"  !help ", Command{Kind: KindHelp}},
		{"!idea", Command{Kind: KindIdea}},
		{"!idea  Uber for dog walkers ", Command{Kind: KindIdea, Text: "Uber for dog walkers"}},
		{"!CFO how do we price?", Command{Kind: KindAsk, Agent: agent.CFO, Text: "how do we price?"}},
		{"!architect grid or flex?", Command{Kind: KindAsk, Agent: agent.Architect, Text: "grid or flex?"}},
		{"@cmo who is our audience?", Command{Kind: KindAsk, Agent: agent.CMO, Text: "who is our audience?"}},
		{"!use cmo", Command{Kind: KindUse, Agent: agent.CMO}},
		{"!board what first?", Command{Kind: KindBoard, Text: "what first?"}},
		{"!reset", Command{Kind: KindReset}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse("!", tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		in      string
		wantErr error
	}{
		{"!cto", ErrMissingText},
		{"!board   ", ErrMissingText},
		{"@cfo", ErrMissingText},
		{"!use ceo", agent.ErrUnknownAgent},
		{"!use", agent.ErrUnknownAgent},
		{"!deploy now", ErrUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if _, err := Parse("!", tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestParse_CustomPrefix(t *testing.T) {
	got, err := Parse("/", "/cto scale?")
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindAsk || got.Agent != agent.CTO {
		t.Errorf("unexpected command %+v", got)
	}
	if got, _ := Parse("/", "!cto scale?"); got.Kind != KindChat {
		t.Errorf("other prefixes are plain chat, got %+v", got)
	}
}

func TestHelpText(t *testing.T) {
	help := helpText("/")
	for _, want := range []string{"/idea", "/cto", "/architect", "/use", "/board", "/reset", "/help", "CFO Bot"} {
		if !strings.Contains(help, want) {
			t.Errorf("help text missing %q", want)
		}
	}
}
