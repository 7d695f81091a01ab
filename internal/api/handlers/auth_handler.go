package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cityride/dispatch/internal/api/dto"
	"github.com/cityride/dispatch/internal/domain/user"
	"github.com/cityride/dispatch/pkg/logger"
)

// Register handles POST /v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}

	role, err := user.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION_ERROR", Message: "role must be customer or driver"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.respondError(c, err)
		return
	}

	account := &user.Account{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
		VehicleMake:  req.VehicleMake,
		VehiclePlate: req.VehiclePlate,
		CreatedAt:    time.Now(),
	}

	if err := h.Users.Create(c.Request.Context(), account); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION_ERROR", Message: "email already registered"})
			return
		}
		h.respondError(c, err)
		return
	}

	h.Logger.Info("account registered",
		logger.String("account_id", account.ID.String()),
		logger.String("role", string(account.Role)),
	)

	token, err := h.Tokens.Issue(account)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.AuthResponse{
		Token:     token,
		AccountID: account.ID,
		Role:      string(account.Role),
	})
}

// Login handles POST /v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION_ERROR", Message: err.Error()})
		return
	}

	account, err := h.Users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "invalid credentials"})
			return
		}
		h.respondError(c, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHENTICATED", Message: "invalid credentials"})
		return
	}

	if account.Blocked {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Code: "ACCOUNT_BLOCKED", Message: "account is blocked"})
		return
	}

	token, err := h.Tokens.Issue(account)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AuthResponse{
		Token:     token,
		AccountID: account.ID,
		Role:      string(account.Role),
	})
}
