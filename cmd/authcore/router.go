package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type handler struct {
	engine *authcore.Engine
	logger *zap.Logger
}

func newRouter(engine *authcore.Engine, logger *zap.Logger, metrics http.Handler) *gin.Engine {
	h := &handler{engine: engine, logger: logger}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), requestLogger(logger))

	auth := r.Group("/auth")
	for _, role := range []authcore.Role{authcore.RoleUser, authcore.RoleHost} {
		g := auth.Group("/" + string(role))
		g.POST("/login", h.login(role))
		g.POST("/verification", h.sendCode(role))
		g.POST("/verification/confirm", h.verifyCode(role))
		g.GET("/me", gin.WrapH(middleware.RequireRole(engine, role, h.me)))
	}
	auth.POST("/user/register", h.registerUser)
	auth.POST("/host/register", h.registerHost)
	auth.POST("/social/:provider", h.socialLogin)
	auth.POST("/refresh", h.refresh)
	auth.POST("/logout", gin.WrapH(middleware.Guard(engine, h.logout)))
	auth.GET("/email-check", h.emailCheck)

	r.GET("/internal/principals/:uuid/email", h.emailByUUID)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	return r
}

type tokenResponse struct {
	ExternalUUID string `json:"externalUuid"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Created      *bool  `json:"created,omitempty"`
}

func newTokenResponse(res *authcore.LoginResult) tokenResponse {
	return tokenResponse{
		ExternalUUID: res.ExternalUUID,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}
}

func (h *handler) login(role authcore.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "email and password are required")
			return
		}

		res, err := h.engine.Login(c.Request.Context(), role, req.Email, req.Password)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, newTokenResponse(res))
	}
}

func (h *handler) sendCode(role authcore.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "email is required")
			return
		}

		if err := h.engine.SendVerificationCode(c.Request.Context(), role, req.Email); err != nil {
			h.fail(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func (h *handler) verifyCode(role authcore.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required"`
			Code  string `json:"code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "email and code are required")
			return
		}

		if err := h.engine.VerifyCode(c.Request.Context(), role, req.Email, req.Code); err != nil {
			h.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type registerBody struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

func (h *handler) registerUser(c *gin.Context) {
	var req registerBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid registration request")
		return
	}

	res, err := h.engine.Register(c.Request.Context(), authcore.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Code:     req.Code,
		Name:     req.Name,
		Phone:    req.PhoneNumber,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"externalUuid": res.ExternalUUID})
}

func (h *handler) registerHost(c *gin.Context) {
	var req struct {
		registerBody
		BusinessRegistrationNumber string `json:"businessRegistrationNumber" binding:"required"`
		BankName                   string `json:"bankName" binding:"required"`
		AccountNumber              string `json:"accountNumber" binding:"required"`
		SettlementCycle            int    `json:"settlementCycle" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid registration request")
		return
	}

	res, err := h.engine.RegisterHost(c.Request.Context(), authcore.HostRegisterRequest{
		Email:           req.Email,
		Password:        req.Password,
		Code:            req.Code,
		Name:            req.Name,
		Phone:           req.PhoneNumber,
		BusinessNumber:  req.BusinessRegistrationNumber,
		BankName:        req.BankName,
		AccountNumber:   req.AccountNumber,
		SettlementCycle: req.SettlementCycle,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"externalUuid": res.ExternalUUID})
}

func (h *handler) socialLogin(c *gin.Context) {
	var req struct {
		AccessToken string `json:"accessToken" binding:"required"`
		Name        string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "accessToken is required")
		return
	}

	res, err := h.engine.SocialLogin(c.Request.Context(), authcore.SocialLoginRequest{
		Provider:    authcore.SocialProvider(strings.ToUpper(c.Param("provider"))),
		AccessToken: req.AccessToken,
		Name:        req.Name,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	out := newTokenResponse(&res.LoginResult)
	out.Created = &res.Created
	c.JSON(http.StatusOK, out)
}

func (h *handler) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refreshToken is required")
		return
	}

	res, err := h.engine.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(res))
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request, claims *authcore.Claims) {
	if err := h.engine.Logout(r.Context(), claims.Subject); err != nil {
		h.logger.Warn("logout failed", zap.String("subject", claims.Subject), zap.Error(err))
		http.Error(w, "logout failed", statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request, claims *authcore.Claims) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"externalUuid": claims.Subject,
		"role":         string(claims.Role),
	})
}

func (h *handler) emailCheck(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		badRequest(c, "email is required")
		return
	}

	taken, err := h.engine.IsEmailTaken(c.Request.Context(), email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"taken": taken})
}

func (h *handler) emailByUUID(c *gin.Context) {
	email, err := h.engine.EmailByUUID(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": email})
}

func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if retry, ok := authcore.RetryAfter(err); ok {
		c.Header("Retry-After", strconv.Itoa(int((retry+time.Second-1)/time.Second)))
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": authcore.KindOf(err).String(), "message": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, authcore.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, authcore.ErrInvalidPassword),
		errors.Is(err, authcore.ErrTokenExpired),
		errors.Is(err, authcore.ErrTokenInvalid),
		errors.Is(err, authcore.ErrRefreshInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, authcore.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	}

	switch authcore.KindOf(err) {
	case authcore.KindNotFound:
		return http.StatusNotFound
	case authcore.KindConflict:
		return http.StatusConflict
	case authcore.KindPolicyDenied:
		return http.StatusTooManyRequests
	case authcore.KindValidationFailed:
		return http.StatusBadRequest
	case authcore.KindRemoteDependencyFailed:
		return http.StatusBadGateway
	case authcore.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger logs one line per request with a request id.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.Request.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case status >= 500:
			logger.Error("http_request", fields...)
		case status >= 400:
			logger.Warn("http_request", fields...)
		default:
			logger.Info("http_request", fields...)
		}
	}
}
