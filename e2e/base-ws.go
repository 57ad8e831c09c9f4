package e2e

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"hearthchat/auth"
	"hearthchat/domain"
)

type BaseWsSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR not set, skipping end-to-end scenarios")
	}
}

// Token issues a short-lived access token for the given user against
// the server's shared secret.
func (s *BaseWsSuite) Token(userID domain.UserID) string {
	token, err := auth.GenerateToken([]byte(s.Config.TokenSecret), int64(userID), time.Hour)
	s.Require().NoError(err)
	return token
}

// DialRoom opens a live room connection with logging and colors
func (s *BaseWsSuite) DialRoom(name string, roomID int64, token string) *websocket.Conn {
	return s.dial(name, fmt.Sprintf("/ws/chat/%d", roomID), token)
}

// DialNotifications opens a live notification connection
func (s *BaseWsSuite) DialNotifications(name string, token string) *websocket.Conn {
	return s.dial(name, "/ws/chat/notifications", token)
}

func (s *BaseWsSuite) dial(name, path, token string) *websocket.Conn {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	u := url.URL{Scheme: "ws", Host: s.Config.ServerAddr, Path: path, RawQuery: "token=" + token}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err, "Failed to connect to "+u.String())
	return conn
}

// Send writes one frame and optionally dumps it
func (s *BaseWsSuite) Send(conn *websocket.Conn, frame any) {
	raw, err := json.Marshal(frame)
	s.Require().NoError(err)
	if s.Config.DebugFrames {
		s.T().Log("SEND:", string(raw))
	}
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, raw))
}

// Receive reads one frame into a generic map, failing after the deadline
func (s *BaseWsSuite) Receive(conn *websocket.Conn, timeout time.Duration) map[string]any {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(timeout)))
	_, raw, err := conn.ReadMessage()
	s.Require().NoError(err)
	if s.Config.DebugFrames {
		s.T().Log("RECV:", string(raw))
	}
	var frame map[string]any
	s.Require().NoError(json.Unmarshal(raw, &frame))
	return frame
}
