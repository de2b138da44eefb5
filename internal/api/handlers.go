package api

import (
	"context"
	"errors"
	"net/http"

	"grouptalk/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type chatService interface {
	CreateGroup(ctx context.Context, name string) (models.Group, error)
	DeleteGroup(ctx context.Context, groupID string) error
	AddMember(ctx context.Context, groupID, userID string) (models.Group, error)
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	SearchGroups(ctx context.Context, query string) ([]models.Group, error)
	ListMembers(ctx context.Context, groupID string) ([]models.Member, error)
	Append(ctx context.Context, groupID, senderID, text string) (models.MessageView, error)
	ToggleLike(ctx context.Context, messageID, userID string) (models.MessageView, error)
	ListMessages(ctx context.Context, groupID string) ([]models.MessageView, error)
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type API struct {
	chat chatService
	log  *zerolog.Logger
}

func New(chat chatService, logger *zerolog.Logger) *API {
	return &API{chat: chat, log: logger}
}

// Register mounts the group and message routes on r.
func (a *API) Register(r gin.IRouter) {
	r.GET("/groups", a.ListGroupsHandler)
	r.POST("/groups", a.CreateGroupHandler)
	r.GET("/groups/:groupId", a.GetGroupHandler)
	r.DELETE("/groups/:groupId", a.DeleteGroupHandler)
	r.GET("/groups/:groupId/members", a.ListMembersHandler)
	r.PUT("/groups/:groupId/members", a.AddMemberHandler)
	r.GET("/groups/:groupId/messages", a.ListMessagesHandler)
	r.POST("/groups/:groupId/messages", a.AppendHandler)
	r.POST("/messages/like", a.LikeHandler)
}

type CreateGroupRequest struct {
	Name string `json:"name"`
}

type AddMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type AppendRequest struct {
	SenderID string `json:"senderId" binding:"required"`
	Text     string `json:"text"`
}

type LikeRequest struct {
	MessageID string `json:"messageId" binding:"required"`
	UserID    string `json:"userId" binding:"required"`
}

// ListGroupsHandler lists every group, or those whose name matches ?name=.
// GET /api/groups
func (a *API) ListGroupsHandler(c *gin.Context) {
	groups, err := a.chat.SearchGroups(c.Request.Context(), c.Query("name"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// POST /api/groups
func (a *API) CreateGroupHandler(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}

	group, err := a.chat.CreateGroup(c.Request.Context(), req.Name)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

// GET /api/groups/:groupId
func (a *API) GetGroupHandler(c *gin.Context) {
	group, err := a.chat.GetGroup(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// DELETE /api/groups/:groupId
func (a *API) DeleteGroupHandler(c *gin.Context) {
	if err := a.chat.DeleteGroup(c.Request.Context(), c.Param("groupId")); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// GET /api/groups/:groupId/members
func (a *API) ListMembersHandler(c *gin.Context) {
	members, err := a.chat.ListMembers(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// PUT /api/groups/:groupId/members
func (a *API) AddMemberHandler(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}

	group, err := a.chat.AddMember(c.Request.Context(), c.Param("groupId"), req.UserID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// GET /api/groups/:groupId/messages
func (a *API) ListMessagesHandler(c *gin.Context) {
	messages, err := a.chat.ListMessages(c.Request.Context(), c.Param("groupId"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// POST /api/groups/:groupId/messages
func (a *API) AppendHandler(c *gin.Context) {
	var req AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}

	msg, err := a.chat.Append(c.Request.Context(), c.Param("groupId"), req.SenderID, req.Text)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// LikeHandler returns the liked message with its updated like set.
// POST /api/messages/like
func (a *API) LikeHandler(c *gin.Context) {
	var req LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, err)
		return
	}

	msg, err := a.chat.ToggleLike(c.Request.Context(), req.MessageID, req.UserID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (a *API) badRequest(c *gin.Context, err error) {
	a.log.Debug().Err(err).Str("path", c.FullPath()).Msg("invalid request body")
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: models.ErrCodeValidation})
}

func (a *API) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		a.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, ErrorResponse{Error: "internal server error", Code: models.ErrCodeInternal})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: models.Code(err)})
}

// StatusFor maps a chat error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyMember), errors.Is(err, models.ErrAlreadyLiked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
