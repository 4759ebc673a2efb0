package webapi

import (
	"time"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/Anyuluo996/BotShepherd/errors"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/server"
	"github.com/Anyuluo996/BotShepherd/validation"
)

// Claims is the admin session token payload.
type Claims struct {
	gojwt.RegisteredClaims
}

// SetDefaults stamps the standard time claims before signing.
func (c *Claims) SetDefaults(now time.Time, ttl time.Duration, issuer string) {
	c.IssuedAt = gojwt.NewNumericDate(now)
	c.ExpiresAt = gojwt.NewNumericDate(now.Add(ttl))
	if issuer != "" {
		c.Issuer = issuer
	}
}

type loginRequest struct {
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// login exchanges the admin password for a session token.
func (a *API) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	if err := validation.Validate(&req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	hash := a.cfg.Global().Web.PasswordHash
	if hash == "" {
		server.RespondWithError(c, apperrors.ServiceUnavailable("admin login"))
		return
	}
	if err := a.hasher.Verify(req.Password, hash); err != nil {
		a.log.Warn("Admin login rejected", logger.Fields("remote", c.ClientIP()))
		server.RespondWithError(c, apperrors.Unauthorized("invalid password"))
		return
	}

	token, err := a.tokens.Issue(&Claims{
		RegisteredClaims: gojwt.RegisteredClaims{Subject: "admin"},
	})
	if err != nil {
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}

	a.log.Info("Admin logged in", logger.Fields("remote", c.ClientIP()))
	server.RespondOK(c, loginResponse{
		Token:     token,
		ExpiresIn: int(a.sessionTTL.Seconds()),
	})
}
