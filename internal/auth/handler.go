package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sio60/guildrunner/pkg/logger"
)

const serviceName = "guildrunner"

type Handler struct {
	service   *Service
	jwtSecret string
	logger    logger.Client
}

func NewHandler(service *Service, jwtSecret string, logger logger.Client) *Handler {
	return &Handler{
		service:   service,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine, loginLimit gin.HandlerFunc) {
	oauth := router.Group("/oauth/kakao")
	if loginLimit != nil {
		oauth.Use(loginLimit)
	}
	{
		oauth.GET("/start", h.StartHandler)
		oauth.POST("/callback", h.CallbackHandler)
	}

	router.GET("/auth/check", h.CheckHandler)
	router.GET("/health", h.HealthHandler)
}

// StartHandler godoc
// @Summary      Start Kakao login
// @Description  Returns the provider authorize URL with a signed state bound to redirectUri
// @Tags         oauth
// @Produce      json
// @Param        redirectUri query string true "Redirect URI registered with the provider"
// @Success      200 {object} map[string]string
// @Failure      400 {object} auth.AppError
// @Router       /oauth/kakao/start [get]
func (h *Handler) StartHandler(c *gin.Context) {
	redirectURI := c.Query("redirectUri")
	if redirectURI == "" {
		sendError(c, &AppError{Status: http.StatusBadRequest, Code: ErrorCodeMissingRedirectURI, Message: "redirectUri is required"})
		return
	}

	authorizeURL, err := h.service.StartLogin(redirectURI)
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorizeUrl": authorizeURL})
}

// CallbackHandler godoc
// @Summary      Complete Kakao login
// @Description  Verifies state, exchanges the code, reconciles the identity and mints the app session token
// @Tags         oauth
// @Accept       json
// @Produce      json
// @Param        request body auth.CallbackRequest true "Callback payload"
// @Success      200 {object} auth.LoginResult
// @Failure      400 {object} auth.AppError
// @Failure      401 {object} auth.AppError
// @Router       /oauth/kakao/callback [post]
func (h *Handler) CallbackHandler(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, &AppError{Status: http.StatusBadRequest, Code: ErrorCodeMissingCode, Message: "invalid JSON body"})
		return
	}
	if req.Code == "" || req.RedirectURI == "" {
		sendError(c, &AppError{Status: http.StatusBadRequest, Code: ErrorCodeMissingCode, Message: "code and redirectUri are required"})
		return
	}

	result, err := h.service.HandleCallback(c.Request.Context(), req.Code, req.State, req.RedirectURI)
	if err != nil {
		sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CheckHandler godoc
// @Summary      Validate a session token
// @Description  Verifies the bearer session token's signature, issuer, audience and expiry
// @Tags         auth
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Failure      401 {object} auth.AppError
// @Router       /auth/check [get]
func (h *Handler) CheckHandler(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		sendError(c, &AppError{Status: http.StatusUnauthorized, Code: ErrorCodeUnauthorized, Message: "missing token"})
		return
	}

	claims, err := VerifySession(h.jwtSecret, token)
	if err != nil {
		sendError(c, &AppError{Status: http.StatusUnauthorized, Code: ErrorCodeUnauthorized, Message: "invalid or expired token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":    claims.Subject,
			"email": claims.Email,
		},
	})
}

// HealthHandler godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /health [get]
func (h *Handler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"service": serviceName,
		"ts":      time.Now().UTC().Format(time.RFC3339),
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func sendError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		body := gin.H{"error": appErr.Code}
		if appErr.Detail != "" {
			body["detail"] = appErr.Detail
		}
		c.JSON(appErr.Status, body)
		return
	}

	// nothing throws past the request boundary: unknown errors become a
	// generic 500 so internals never leak to the client
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": ErrorCodeUnexpected,
	})
}
