package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/famsched/internal/auth"
)

// HandleWebSocket upgrades GET /ws for a logged-in member and keeps the tab
// subscribed to update signals until it disconnects.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			// Family devices reach the server by LAN address.
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Warn("accept websocket", "error", err)
			return
		}
		defer conn.CloseNow()

		newClient(hub, conn, auth.MemberID(r.Context())).serve(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}
