package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"surf_clock/internal/service"
)

const errAuthInternal = "authentication unavailable"

type authCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// readCredentials binds the JSON body or answers 400.
func (h *Handler) readCredentials(c *gin.Context) (authCredentials, bool) {
	var in authCredentials
	if err := c.ShouldBindJSON(&in); err != nil {
		if h.log != nil {
			h.log.Debugw("auth_bad_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"username\", \"password\"}"})
		return authCredentials{}, false
	}
	return in, true
}

// authStatus maps auth service errors onto HTTP codes. Anything unknown is a 500.
func authStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidUsername), errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrSignUpClosed):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) authError(c *gin.Context, logKey, username string, err error) {
	code := authStatus(err)
	if code == http.StatusInternalServerError {
		h.logAndJSONError(c, code, errAuthInternal, logKey, err, "username", username)
		return
	}
	if h.log != nil {
		h.log.Infow(logKey, "username", username, "status", code, "err", err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// @Summary      Register operator
// @Description  The first operator registers freely. Later sign-ups need a bearer token from an existing operator.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      authCredentials  true  "Username and password"
// @Success      201   {object}  map[string]int
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /auth/sign-up [post]
// @Security     BearerAuth
func (h *Handler) signUp(c *gin.Context) {
	in, ok := h.readCredentials(c)
	if !ok {
		return
	}

	invited := false
	if token, present, err := bearerToken(c); present {
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if _, err := h.services.ParseToken(token); err != nil {
			h.authError(c, "auth_sign_up_rejected", in.Username, service.ErrInvalidToken)
			return
		}
		invited = true
	}

	id, err := h.services.SignUp(c.Request.Context(), in.Username, in.Password, invited)
	if err != nil {
		h.authError(c, "auth_sign_up_rejected", in.Username, err)
		return
	}
	if h.log != nil {
		h.log.Infow("operator_registered", "id", id, "invited", invited)
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// @Summary      Obtain bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      authCredentials  true  "Username and password"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	in, ok := h.readCredentials(c)
	if !ok {
		return
	}
	token, err := h.services.GenerateToken(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		h.authError(c, "auth_sign_in_rejected", in.Username, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
