package ws

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"hearthchat/auth"
	"hearthchat/domain"
	"hearthchat/observability"
	"hearthchat/services"
)

// Application close codes, in the private 4000-4999 range.
const (
	closeInternalError   = 4000
	closeUnauthenticated = 4001
	closeForbidden       = 4003
)

// Handler upgrades HTTP requests into live connections. Authentication
// and access decisions happen after the upgrade so the client receives
// a close code it can distinguish, not an HTTP status.
type Handler struct {
	upgrader   websocket.Upgrader
	resolver   *auth.Resolver
	chat       services.IChatService
	stats      *observability.Stats
	bufferSize int
	log        *slog.Logger
}

func NewHandler(resolver *auth.Resolver, chat services.IChatService, stats *observability.Stats, bufferSize int, log *slog.Logger) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin enforcement belongs to the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		resolver:   resolver,
		chat:       chat,
		stats:      stats,
		bufferSize: bufferSize,
		log:        log,
	}
}

// Register mounts both live endpoints. The notification route is
// registered before the room route so "notifications" is never read as
// a room id; the room pattern only matches numeric ids anyway.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/ws/chat/notifications", h.serveNotifications)
	r.HandleFunc("/ws/chat/{roomID:[0-9]+}", h.serveRoom)
}

func (h *Handler) serveRoom(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Upgrade failed", "error", err)
		return
	}

	principal := h.resolver.Resolve(r.Context(), r.URL.Query().Get("token"))
	if principal.IsAnonymous() {
		h.closeWith(socket, closeUnauthenticated, "User not authenticated")
		return
	}

	roomID, err := strconv.ParseInt(mux.Vars(r)["roomID"], 10, 64)
	if err != nil {
		h.closeWith(socket, closeInternalError, "Invalid room id")
		return
	}

	conn := newConn(socket, principal, domain.RoomID(roomID), h.bufferSize, h.log)
	allowed, err := h.chat.JoinRoom(r.Context(), principal, conn.room, conn.id, conn)
	if err != nil {
		h.log.Error("Join failed", "room_id", roomID, "error", err)
		h.closeWith(socket, closeInternalError, "Internal error")
		return
	}
	if !allowed {
		h.log.Warn("Connection rejected: no access to room",
			"user_id", principal.UserID, "room_id", roomID)
		h.closeWith(socket, closeForbidden, "Access to room denied")
		return
	}

	conn.dispatch = h.chat.Send
	conn.onClose = func() {
		h.chat.LeaveRoom(conn.id, conn.room)
		h.stats.ConnClosed()
	}
	h.stats.ConnOpened()
	h.log.Info("Room connection opened", "user_id", principal.UserID, "room_id", roomID)
	conn.run()
}

func (h *Handler) serveNotifications(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Upgrade failed", "error", err)
		return
	}

	principal := h.resolver.Resolve(r.Context(), r.URL.Query().Get("token"))
	if principal.IsAnonymous() {
		h.closeWith(socket, closeUnauthenticated, "User not authenticated")
		return
	}

	conn := newConn(socket, principal, 0, h.bufferSize, h.log)
	h.chat.AttachNotifications(principal.UserID, conn.id, conn)
	conn.onClose = func() {
		h.chat.DetachNotifications(principal.UserID, conn.id)
		h.stats.ConnClosed()
	}
	h.stats.ConnOpened()
	h.log.Info("Notification connection opened", "user_id", principal.UserID)
	conn.run()
}

// closeWith sends a proper close frame carrying an application close
// code, then drops the socket. Clients rely on the code to tell an
// auth failure from a transient server error.
func (h *Handler) closeWith(socket *websocket.Conn, code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	_ = socket.SetWriteDeadline(time.Now().Add(writeWait))
	_ = socket.WriteMessage(websocket.CloseMessage, message)
	socket.Close()
}
