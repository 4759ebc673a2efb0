package webapi

import (
	"github.com/gin-gonic/gin"

	"github.com/Anyuluo996/BotShepherd/config"
	apperrors "github.com/Anyuluo996/BotShepherd/errors"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/server"
)

// connectionView pairs a connection definition with the live session
// state, when the proxy currently holds one for it.
type connectionView struct {
	*config.ConnectionConfig
	Live *sessionView `json:"live,omitempty"`
}

// sessionView is the wire form of a live session's counters.
type sessionView struct {
	ClientOnline  bool  `json:"client_online"`
	TargetsOnline int   `json:"targets_online"`
	TargetsTotal  int   `json:"targets_total"`
	Received      int64 `json:"received"`
	Sent          int64 `json:"sent"`
}

type routeIssueView struct {
	ConnectionID string `json:"connection_id"`
	Port         int    `json:"port,omitempty"`
	Path         string `json:"path,omitempty"`
	Reason       string `json:"reason"`
}

// reloadView reports the outcome of a route reload.
type reloadView struct {
	Routes int              `json:"routes"`
	Issues []routeIssueView `json:"issues"`
}

type connectionUpdateView struct {
	Connection *config.ConnectionConfig `json:"connection"`
	Reload     reloadView               `json:"reload"`
}

func issueViews(issues []config.RouteIssue) []routeIssueView {
	out := make([]routeIssueView, 0, len(issues))
	for _, issue := range issues {
		out = append(out, routeIssueView{
			ConnectionID: issue.ConnectionID,
			Port:         issue.Port,
			Path:         issue.Path,
			Reason:       issue.Reason,
		})
	}
	return out
}

// listConnections returns every configured connection, each annotated
// with its live session state if the proxy is serving it right now.
func (a *API) listConnections(c *gin.Context) {
	live := make(map[string]sessionView)
	for _, st := range a.proxy.Statuses() {
		live[st.ConnectionID] = sessionView{
			ClientOnline:  st.ClientOnline,
			TargetsOnline: st.TargetsOnline,
			TargetsTotal:  st.TargetsTotal,
			Received:      st.Received,
			Sent:          st.Sent,
		}
	}

	conns := a.cfg.Connections()
	out := make([]connectionView, 0, len(conns))
	for _, conn := range conns {
		view := connectionView{ConnectionConfig: conn}
		if st, ok := live[conn.ID]; ok {
			view.Live = &st
		}
		out = append(out, view)
	}
	server.RespondOK(c, out)
}

// updateConnection creates or replaces a connection, persists it, and
// reloads the proxy so the change takes effect immediately.
func (a *API) updateConnection(c *gin.Context) {
	var conn config.ConnectionConfig
	if err := c.ShouldBindJSON(&conn); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	conn.ID = c.Param("id")
	if err := conn.Validate(); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := a.cfg.SetConnection(&conn); err != nil {
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}

	routes, issues, err := a.proxy.Reload(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}
	a.log.Info("Connection updated", logger.Fields("connection_id", conn.ID))
	server.RespondOK(c, connectionUpdateView{
		Connection: &conn,
		Reload:     reloadView{Routes: routes, Issues: issueViews(issues)},
	})
}

// deleteConnection removes a connection and reloads the proxy, tearing
// down its session and listener.
func (a *API) deleteConnection(c *gin.Context) {
	id := c.Param("id")
	if _, ok := a.cfg.Connection(id); !ok {
		server.RespondWithError(c, apperrors.NotFound("connection", id))
		return
	}
	if err := a.cfg.DeleteConnection(id); err != nil {
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}

	routes, issues, err := a.proxy.Reload(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}
	a.log.Info("Connection deleted", logger.Fields("connection_id", id))
	server.RespondOK(c, reloadView{Routes: routes, Issues: issueViews(issues)})
}

// reload re-reads the connection files and applies the resulting routes.
func (a *API) reload(c *gin.Context) {
	routes, issues, err := a.proxy.Reload(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}
	server.RespondOK(c, reloadView{Routes: routes, Issues: issueViews(issues)})
}
