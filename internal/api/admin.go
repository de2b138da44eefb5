package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"grouptalk/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type userDirectory interface {
	RegisterUser(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	Online(userID string) bool
}

type AdminHandler struct {
	users   userDirectory
	baseURL string
	log     *zerolog.Logger
}

func NewAdminHandler(users userDirectory, baseURL string, logger *zerolog.Logger) *AdminHandler {
	return &AdminHandler{users: users, baseURL: baseURL, log: logger}
}

func (h *AdminHandler) Register(r gin.IRouter) {
	r.POST("/users", h.AddUserHandler)
	r.GET("/users", h.ListUsersHandler)
}

type AddUserRequest struct {
	Username string `json:"username"`
}

type AddUserResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	UserID     string `json:"userId,omitempty"`
	Username   string `json:"username,omitempty"`
	ConnectURL string `json:"connectUrl,omitempty"`
}

type UserResponse struct {
	models.User
	Online bool `json:"online"`
}

// POST /admin/users
func (h *AdminHandler) AddUserHandler(c *gin.Context) {
	var req AddUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AddUserResponse{Message: "Invalid request body"})
		return
	}

	user, err := h.users.RegisterUser(c.Request.Context(), req.Username)
	if err != nil {
		status := StatusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("username", req.Username).Msg("failed to create user")
		}
		c.JSON(status, AddUserResponse{Message: fmt.Sprintf("Failed to create user: %v", err)})
		return
	}

	c.JSON(http.StatusOK, AddUserResponse{
		Success:    true,
		UserID:     user.ID,
		Username:   user.UserName,
		ConnectURL: h.connectURL(user.ID),
	})
}

// GET /admin/users
func (h *AdminHandler) ListUsersHandler(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: models.ErrCodeInternal})
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, UserResponse{User: u, Online: h.users.Online(u.ID)})
	}
	c.JSON(http.StatusOK, resp)
}

// connectURL is the websocket address a client of userID dials.
func (h *AdminHandler) connectURL(userID string) string {
	base := strings.TrimRight(h.baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return fmt.Sprintf("%s/api/chat?userId=%s", base, url.QueryEscape(userID))
}
