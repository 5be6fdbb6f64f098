package whatsapp

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func newEvent(fromMe bool, m *waProto.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:     types.NewJID("120363000000000000", types.GroupServer),
				Sender:   types.NewJID("5491100000000", types.DefaultUserServer),
				IsFromMe: fromMe,
				IsGroup:  true,
			},
			ID:        "MSG1",
			Timestamp: time.Unix(1700000000, 0),
		},
		Message: m,
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name   string
		fromMe bool
		msg    *waProto.Message
		want   string
		ok     bool
	}{
		{"conversation", false, &waProto.Message{Conversation: proto.String("!cto stack?")}, "!cto stack?", true},
		{"extended text", false, &waProto.Message{ExtendedTextMessage: &waProto.ExtendedTextMessage{Text: proto.String("reply")}}, "reply", true},
		{"image caption", false, &waProto.Message{ImageMessage: &waProto.ImageMessage{Caption: proto.String("look")}}, "look", true},
		{"image without caption", false, &waProto.Message{ImageMessage: &waProto.ImageMessage{}}, "", false},
		{"from me", true, &waProto.Message{Conversation: proto.String("echo")}, "", false},
		{"nil message", false, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseMessage(newEvent(tt.fromMe, tt.msg))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Content != tt.want {
				t.Errorf("content = %q, want %q", got.Content, tt.want)
			}
			if got.ID != "MSG1" || !got.IsGroup || got.Chat != "120363000000000000@g.us" {
				t.Errorf("metadata = %+v", got)
			}
		})
	}
}

func TestConnectionState_String(t *testing.T) {
	if StateLoggedOut.String() != "logged_out" || ConnectionState(42).String() != "unknown" {
		t.Error("unexpected state names")
	}
}

func TestWriteQR(t *testing.T) {
	var buf bytes.Buffer
	png := filepath.Join(t.TempDir(), "qr.png")

	if err := writeQR(&buf, png, "2@pairing-code,abc,def"); err != nil {
		t.Fatalf("writeQR: %v", err)
	}
	if !strings.Contains(buf.String(), "Linked Devices") || !strings.ContainsAny(buf.String(), "█▀▄") {
		t.Errorf("unexpected terminal output:\n%s", buf.String())
	}
	if info, err := os.Stat(png); err != nil || info.Size() == 0 {
		t.Errorf("png not written: %v", err)
	}
}
