package e2e

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

// The scenario assumes a server seeded with the in-memory directory
// fixtures: family 1 with users 101 and 102 as members, and room 1
// containing both. See directory.SeedDemo.

type testRoomMessagingSuite struct {
	BaseWsSuite
}

func TestRoomMessagingSuite(t *testing.T) {
	suite.Run(t, &testRoomMessagingSuite{})
}

func (s *testRoomMessagingSuite) TestEncryptedMessageFlow() {
	alice := s.Token(101)
	bob := s.Token(102)

	ciphertext := base64.StdEncoding.EncodeToString([]byte("opaque-bytes-the-server-never-reads"))
	iv := base64.StdEncoding.EncodeToString([]byte("0123456789ab"))

	// --- STEP 1: BOTH MEMBERS JOIN THE ROOM ---
	aliceRoom := s.DialRoom("Alice joins room 1", 1, alice)
	defer aliceRoom.Close()
	bobRoom := s.DialRoom("Bob joins room 1", 1, bob)
	defer bobRoom.Close()

	// --- STEP 2: BOB LISTENS ON HIS NOTIFICATION CHANNEL ---
	bobNotifications := s.DialNotifications("Bob attaches notifications", bob)
	defer bobNotifications.Close()

	// --- STEP 3: ALICE SENDS, EVERYONE IN THE ROOM RECEIVES ---
	s.Send(aliceRoom, map[string]string{
		"type":       "message",
		"ciphertext": ciphertext,
		"iv":         iv,
	})

	broadcast := s.Receive(bobRoom, 5*time.Second)
	s.Require().Equal("message", broadcast["type"])
	// Byte-identical round-trip: what Bob reads is what Alice wrote
	s.Require().Equal(ciphertext, broadcast["ciphertext"])
	s.Require().Equal(iv, broadcast["iv"])
	s.Require().NotZero(broadcast["id"])

	// The sender's own connection receives the broadcast too
	echo := s.Receive(aliceRoom, 5*time.Second)
	s.Require().Equal(ciphertext, echo["ciphertext"])

	// --- STEP 4: BOB IS NOTIFIED, NEVER WITH CIPHERTEXT ---
	notification := s.Receive(bobNotifications, 5*time.Second)
	s.Require().Equal("room_message", notification["type"])
	s.Require().Equal(broadcast["id"], notification["message_id"])
	s.Require().NotContains(notification, "ciphertext")
}

func (s *testRoomMessagingSuite) TestMalformedFrameGetsErrorBack() {
	alice := s.Token(101)
	aliceRoom := s.DialRoom("Alice joins room 1", 1, alice)
	defer aliceRoom.Close()

	s.Send(aliceRoom, map[string]string{"type": "message", "ciphertext": ""})

	frame := s.Receive(aliceRoom, 5*time.Second)
	s.Require().Equal("error", frame["type"])
}

func (s *testRoomMessagingSuite) TestInvalidTokenGetsUnauthorizedClose() {
	u := url.URL{
		Scheme:   "ws",
		Host:     s.Config.ServerAddr,
		Path:     "/ws/chat/1",
		RawQuery: "token=not-a-token",
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err, "upgrade succeeds, rejection arrives as a close frame")
	defer conn.Close()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	s.Require().True(ok, fmt.Sprintf("expected close error, got %v", err))
	s.Require().Equal(4001, closeErr.Code)
}
