package http

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ethid/ethid/adapters/qr"
	"github.com/ethid/ethid/adapters/sessiontoken"
	"github.com/ethid/ethid/core"
	"github.com/ethid/ethid/service"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "ethid_session"

const serverFaultMessage = "Ooops ! Something went wrong but we work on it"

// AuthHandlers contains the HTTP handlers for the authentication flow.
type AuthHandlers struct {
	authService *service.AuthService
	sessions    *sessiontoken.Manager
	renderer    *qr.Renderer
	logger      *zap.Logger

	callbackURL  string
	cookieMaxAge int
	secureCookie bool
}

// NewAuthHandlers creates new auth handlers. cookieMaxAge is in seconds;
// secureCookie should be true everywhere the site is served over https.
func NewAuthHandlers(
	authService *service.AuthService,
	sessions *sessiontoken.Manager,
	renderer *qr.Renderer,
	logger *zap.Logger,
	callbackURL string,
	cookieMaxAge int,
	secureCookie bool,
) *AuthHandlers {
	return &AuthHandlers{
		authService:  authService,
		sessions:     sessions,
		renderer:     renderer,
		logger:       logger,
		callbackURL:  callbackURL,
		cookieMaxAge: cookieMaxAge,
		secureCookie: secureCookie,
	}
}

// Login starts the challenge phase: a fresh session handle plus a challenge
// URI and its scannable form. Any previously authenticated state is
// discarded, so hitting /login is also how a user signs out and back in.
func (h *AuthHandlers) Login(c *gin.Context) {
	previousSessionID := ""
	if sess := h.currentSession(c); sess != nil {
		previousSessionID = sess.ID
	}

	grant, err := h.authService.BeginChallenge(c.Request.Context(), previousSessionID)
	if err != nil {
		h.logger.Error("failed to begin challenge", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": serverFaultMessage})
		return
	}

	png, err := h.renderer.RenderPNG(grant.URI)
	if err != nil {
		h.logger.Error("failed to render challenge", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": serverFaultMessage})
		return
	}

	h.setSessionCookie(c, grant.SessionID, "")

	c.JSON(http.StatusOK, gin.H{
		"callback_uri":  h.callbackURL,
		"challenge_uri": grant.URI,
		"qrcode":        "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

// Callback receives the signed challenge from the external signer. This is
// a different network principal than the browser: success acknowledges the
// answer but never touches the browser's session.
func (h *AuthHandlers) Callback(c *gin.Context) {
	var req struct {
		URI       string `json:"uri" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Address   string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	receipt, err := h.authService.SubmitCallback(c.Request.Context(), req.URI, req.Signature, req.Address)
	if err != nil {
		status, msg := callbackFailure(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("callback failed", zap.Error(err))
		}
		c.JSON(status, gin.H{"message": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": receipt.Address,
		"nonce":   receipt.CorrelationToken,
	})
}

// callbackFailure maps the validation taxonomy onto responses. Every
// reason stays distinguishable for the caller.
func callbackFailure(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidAddress):
		return http.StatusUnauthorized, "Address is invalid or not legal"
	case errors.Is(err, core.ErrInvalidChallenge):
		return http.StatusUnauthorized, "Challenge URI is invalid or not legal"
	case errors.Is(err, core.ErrInvalidSignature):
		return http.StatusUnauthorized, "Signature is incorrect"
	case errors.Is(err, core.ErrUnknownNonce):
		return http.StatusUnauthorized, "Nonce is illegal"
	case errors.Is(err, core.ErrExpiredNonce):
		return http.StatusUnauthorized, "Nonce has expired"
	case errors.Is(err, core.ErrAlreadyResolved):
		return http.StatusUnauthorized, "Nonce has already been used"
	case errors.Is(err, core.ErrGoodwillDenied):
		return http.StatusUnauthorized, "Address has not demonstrated goodwill"
	default:
		return http.StatusInternalServerError, serverFaultMessage
	}
}

// Poll is called repeatedly by the browser to detect completion. A missing
// or unreadable session cookie is answered with auth=false, never an
// error. On the first successful poll the user id is bound into the
// session cookie; later polls for the same session also report auth=false,
// so clients must switch to the cookie for authorization once bound.
func (h *AuthHandlers) Poll(c *gin.Context) {
	sess := h.currentSession(c)
	if sess == nil {
		c.JSON(http.StatusOK, gin.H{"auth": false})
		return
	}

	status, err := h.authService.PollStatus(c.Request.Context(), sess.ID)
	if err != nil {
		h.logger.Error("poll failed", zap.String("session_id", sess.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": serverFaultMessage})
		return
	}
	if !status.Authenticated {
		c.JSON(http.StatusOK, gin.H{"auth": false})
		return
	}

	h.setSessionCookie(c, sess.ID, status.UserID)
	c.JSON(http.StatusOK, gin.H{"auth": true})
}

// User returns the authenticated user's profile.
func (h *AuthHandlers) User(c *gin.Context) {
	sess := h.currentSession(c)
	if sess == nil || !sess.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return
	}

	identity, err := h.authService.Identity(c.Request.Context(), sess.UserID)
	if err != nil {
		h.logger.Error("failed to load identity", zap.String("user_id", sess.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": serverFaultMessage})
		return
	}
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":      identity.Address,
		"signin_count": identity.SigninCount,
	})
}

// SignOut drops the user id from the session, keeping the session handle.
func (h *AuthHandlers) SignOut(c *gin.Context) {
	if sess := h.currentSession(c); sess != nil && sess.Authenticated() {
		h.setSessionCookie(c, sess.ID, "")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// currentSession returns the session carried by the request cookie, or nil
// when there is none or it does not parse.
func (h *AuthHandlers) currentSession(c *gin.Context) *core.Session {
	raw, err := c.Cookie(SessionCookie)
	if err != nil || raw == "" {
		return nil
	}

	sess, err := h.sessions.Parse(raw)
	if err != nil {
		return nil
	}
	return sess
}

func (h *AuthHandlers) setSessionCookie(c *gin.Context, sessionID, userID string) {
	token, err := h.sessions.Issue(sessionID, userID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		return
	}
	c.SetCookie(SessionCookie, token, h.cookieMaxAge, "/", "", h.secureCookie, true)
}
