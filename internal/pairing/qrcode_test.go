package pairing

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGenerator_JoinInfoLocalURLs(t *testing.T) {
	g := NewGenerator("127.0.0.1", 8970, "sess-1", "assess-1")

	info := g.JoinInfo()
	if info.WebSocket != "ws://127.0.0.1:8970/ws/sess-1" {
		t.Errorf("WebSocket = %s", info.WebSocket)
	}
	if info.HTTP != "http://127.0.0.1:8970" {
		t.Errorf("HTTP = %s", info.HTTP)
	}
	if info.SessionID != "sess-1" || info.AssessmentID != "assess-1" {
		t.Errorf("ids = %s / %s", info.SessionID, info.AssessmentID)
	}
}

func TestGenerator_ExternalURLOverride(t *testing.T) {
	g := NewGenerator("127.0.0.1", 8970, "sess-1", "assess-1")
	g.SetExternalURL("https://tunnel.example.com/")

	info := g.JoinInfo()
	if info.HTTP != "https://tunnel.example.com" {
		t.Errorf("HTTP = %s", info.HTTP)
	}
	if info.WebSocket != "wss://tunnel.example.com/ws/sess-1" {
		t.Errorf("WebSocket = %s", info.WebSocket)
	}
}

func TestGenerator_JSONRoundTrip(t *testing.T) {
	g := NewGenerator("localhost", 9000, "sess-2", "assess-2")

	raw, err := g.JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}

	var info JoinInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.SessionID != "sess-2" {
		t.Errorf("SessionID = %s", info.SessionID)
	}
	if !strings.Contains(raw, `"ws":"ws://localhost:9000/ws/sess-2"`) {
		t.Errorf("unexpected payload: %s", raw)
	}
}

func TestGenerator_TerminalRendering(t *testing.T) {
	g := NewGenerator("localhost", 9000, "sess-2", "assess-2")

	out, err := g.Terminal()
	if err != nil {
		t.Fatalf("terminal render: %v", err)
	}
	if out == "" {
		t.Error("expected non-empty QR rendering")
	}
}

func TestGenerator_PNG(t *testing.T) {
	g := NewGenerator("localhost", 9000, "sess-2", "assess-2")

	data, err := g.PNG(256)
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	// PNG magic bytes.
	if len(data) < 8 || data[1] != 'P' || data[2] != 'N' || data[3] != 'G' {
		t.Error("expected PNG output")
	}
}
