package webapi

import (
	"github.com/gin-gonic/gin"

	"github.com/Anyuluo996/BotShepherd/botauth"
	apperrors "github.com/Anyuluo996/BotShepherd/errors"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/server"
	"github.com/Anyuluo996/BotShepherd/store"
	"github.com/Anyuluo996/BotShepherd/validation"
)

type generateKeyRequest struct {
	BotID string `json:"bot_id" validate:"required"`
}

// authStatusView is the auth overview: whether key auth is enforced and
// the per-bot records.
type authStatusView struct {
	Enabled bool               `json:"enabled"`
	Bots    []store.AuthStatus `json:"bots"`
}

// listKeys returns the outstanding temp keys.
func (a *API) listKeys(c *gin.Context) {
	if a.botAuth == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("bot auth"))
		return
	}
	server.RespondOK(c, a.botAuth.ValidKeys())
}

// generateKey mints a temp key a bot can redeem with the auth command.
func (a *API) generateKey(c *gin.Context) {
	if a.botAuth == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("bot auth"))
		return
	}
	var req generateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	if err := validation.Validate(&req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	key, expiresAt, err := a.botAuth.GenerateKey(req.BotID)
	if err != nil {
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}
	server.RespondCreated(c, botauth.KeyInfo{
		Key:       key,
		BotID:     req.BotID,
		ExpiresAt: expiresAt,
	})
}

// authStatus reports the auth state of every known bot.
func (a *API) authStatus(c *gin.Context) {
	if a.botAuth == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("bot auth"))
		return
	}
	bots, err := a.botAuth.ListStatuses(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, apperrors.DatabaseError(err))
		return
	}
	server.RespondOK(c, authStatusView{
		Enabled: a.botAuth.Enabled(),
		Bots:    bots,
	})
}

// clearBan lifts a bot's ban and resets its failure counter.
func (a *API) clearBan(c *gin.Context) {
	if a.botAuth == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("bot auth"))
		return
	}
	botID := c.Param("botID")
	if err := a.botAuth.ClearBan(c.Request.Context(), botID); err != nil {
		server.RespondWithError(c, apperrors.DatabaseError(err))
		return
	}
	a.log.Info("Ban cleared", logger.Fields("bot_id", botID))
	server.RespondNoContent(c)
}
