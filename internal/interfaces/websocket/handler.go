package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/garyjia/hr-approval/internal/domain/identity"
)

// Authenticate resolves the caller of a raw access token
type Authenticate func(ctx context.Context, token string) (identity.Identity, error)

// TokenFunc extracts the raw access token of an upgrade request
type TokenFunc func(c *gin.Context) string

var upgrader = gorillaWS.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades an authenticated request and streams the caller's notifications
func Handler(hub *Hub, token TokenFunc, authenticate Authenticate, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := token(c)
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing token", "kind": "unauthenticated"})
			return
		}

		actor, err := authenticate(c.Request.Context(), raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token", "kind": "unauthenticated"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("Failed to upgrade websocket", zap.Error(err))
			return
		}

		client := NewClient(uuid.NewString(), actor.UserID, hub, conn, logger)
		if !hub.Register(client) {
			_ = conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseGoingAway, "shutting down"))
			conn.Close()
			return
		}

		go client.ReadPump()
		go client.WritePump()
	}
}
