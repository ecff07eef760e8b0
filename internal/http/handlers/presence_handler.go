// Presence HTTP handler.
//
// GET /presence exposes the live user roster for dashboards and debugging.
// It is read-only; registration only ever happens over the websocket.
package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

// PresenceResponse lists the users with at least one live connection.
type PresenceResponse struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// Presence returns the current online roster, sorted for stable output.
func (h *Handlers) Presence(c *gin.Context) {
	users := h.router.OnlineUsers()
	sort.Strings(users)
	ok(c, http.StatusOK, PresenceResponse{Users: users, Count: len(users)})
}
