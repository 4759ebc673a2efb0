package webapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Anyuluo996/BotShepherd/database/query"
	apperrors "github.com/Anyuluo996/BotShepherd/errors"
	"github.com/Anyuluo996/BotShepherd/server"
	"github.com/Anyuluo996/BotShepherd/store"
)

// statsView groups today's counters with an optional historical window.
type statsView struct {
	Today []store.DailyStat `json:"today"`
	Range []store.DailyStat `json:"range,omitempty"`
}

// listMessages searches the message archive. Filters arrive as query
// params (connection_id, direction, post_type, ...) plus search,
// since/until, limit, page, sortBy and order; see the query package for
// the full grammar.
func (a *API) listMessages(c *gin.Context) {
	if a.messages == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("message archive"))
		return
	}

	params := query.ParseFromRequest(c.Request, store.MessageQueryConfig())
	result, err := a.messages.Search(c.Request.Context(), params)
	if err != nil {
		server.RespondWithError(c, apperrors.DatabaseError(err))
		return
	}
	server.RespondOK(c, result)
}

// getStats returns today's per-connection counters. With from and to
// query params (YYYY-MM-DD) it also returns that date range.
func (a *API) getStats(c *gin.Context) {
	if a.stats == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("statistics"))
		return
	}

	today, err := a.stats.Today(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, apperrors.DatabaseError(err))
		return
	}
	view := statsView{Today: today}

	from, to := c.Query("from"), c.Query("to")
	if from != "" || to != "" {
		if from == "" {
			from = to
		}
		if to == "" {
			to = store.DateKey(time.Now())
		}
		if _, err := time.Parse("2006-01-02", from); err != nil {
			server.RespondWithError(c, apperrors.InvalidInput("from", "expected YYYY-MM-DD"))
			return
		}
		if _, err := time.Parse("2006-01-02", to); err != nil {
			server.RespondWithError(c, apperrors.InvalidInput("to", "expected YYYY-MM-DD"))
			return
		}
		window, err := a.stats.Range(c.Request.Context(), from, to)
		if err != nil {
			server.RespondWithError(c, apperrors.DatabaseError(err))
			return
		}
		view.Range = window
	}

	server.RespondOK(c, view)
}
