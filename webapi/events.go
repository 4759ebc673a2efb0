package webapi

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/Anyuluo996/BotShepherd/errors"
	"github.com/Anyuluo996/BotShepherd/server"
	"github.com/Anyuluo996/BotShepherd/sse"
)

// events streams proxy lifecycle events to the dashboard over SSE. The
// request blocks until the client disconnects.
func (a *API) events(c *gin.Context) {
	if a.hub == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("event stream"))
		return
	}
	sse.ServeSSE(a.hub, c.Writer, c.Request, sse.DashboardClientID())
}
