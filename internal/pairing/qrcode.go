// Package pairing generates candidate join links and QR codes. When a
// session is registered, the daemon emits a link the candidate opens in a
// browser; on shared screens the QR form is printed to the terminal.
package pairing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// JoinInfo is the information encoded in the QR code.
type JoinInfo struct {
	WebSocket    string `json:"ws"`
	HTTP         string `json:"http"`
	SessionID    string `json:"session"`
	AssessmentID string `json:"assessment"`
}

// Generator builds join links and QR codes for one session.
type Generator struct {
	host         string
	port         int
	sessionID    string
	assessmentID string
	externalURL  string // Optional: public URL for tunnels
}

// NewGenerator creates a join-link generator.
func NewGenerator(host string, port int, sessionID, assessmentID string) *Generator {
	return &Generator{
		host:         host,
		port:         port,
		sessionID:    sessionID,
		assessmentID: assessmentID,
	}
}

// SetExternalURL overrides the local host:port URLs for tunnel setups.
func (g *Generator) SetExternalURL(url string) {
	g.externalURL = url
}

// JoinInfo returns the join information.
func (g *Generator) JoinInfo() *JoinInfo {
	wsURL := fmt.Sprintf("ws://%s:%d/ws/%s", g.host, g.port, g.sessionID)
	httpURL := fmt.Sprintf("http://%s:%d", g.host, g.port)

	if g.externalURL != "" {
		base := strings.TrimSuffix(g.externalURL, "/")
		httpURL = base
		wsURL = strings.Replace(base, "http", "ws", 1) + "/ws/" + g.sessionID
	}

	return &JoinInfo{
		WebSocket:    wsURL,
		HTTP:         httpURL,
		SessionID:    g.sessionID,
		AssessmentID: g.assessmentID,
	}
}

// JSON returns the join info as JSON.
func (g *Generator) JSON() (string, error) {
	data, err := json.Marshal(g.JoinInfo())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Terminal renders the QR code as a terminal-friendly string.
func (g *Generator) Terminal() (string, error) {
	jsonData, err := g.JSON()
	if err != nil {
		return "", err
	}

	qr, err := qrcode.New(jsonData, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return qr.ToSmallString(false), nil
}

// PNG renders the QR code as a PNG image.
func (g *Generator) PNG(size int) ([]byte, error) {
	jsonData, err := g.JSON()
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(jsonData, qrcode.Medium, size)
}

// PrintToTerminal prints the QR code with a caption.
func (g *Generator) PrintToTerminal() {
	qrStr, err := g.Terminal()
	if err != nil {
		fmt.Printf("  [Error generating QR code: %v]\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Candidate join code:")
	fmt.Println()
	for _, line := range strings.Split(qrStr, "\n") {
		if line != "" {
			fmt.Printf("  %s\n", line)
		}
	}
	fmt.Println()
}
