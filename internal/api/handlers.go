package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"chathub/internal/auth"
	"chathub/internal/service/ai"
	"chathub/internal/service/chat"
	"chathub/internal/service/store"
)

// Handler wires HTTP routes to the store, chat, and auth services.
type Handler struct {
	store *store.Service
	chat  *chat.Service
	auth  *auth.Service
}

// NewHandler constructs a Handler instance.
func NewHandler(st *store.Service, chatService *chat.Service, authService *auth.Service) *Handler {
	return &Handler{store: st, chat: chatService, auth: authService}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the chathub API"})
	})

	api := router.Group("/api")
	api.POST("/auth/login", h.login)

	authed := api.Group("", h.auth.Middleware(h.store))
	authed.GET("/auth/me", h.currentUser)
	authed.GET("/users/me", h.currentUser)

	authed.POST("/conversations/", h.createConversation)
	authed.GET("/conversations/", h.listConversations)
	authed.GET("/conversations/:id", h.getConversation)
	authed.POST("/conversations/:id/messages", h.replaceMessages)

	authed.POST("/chat/conversations", h.createConversation)
	authed.POST("/chat/:id/message", h.sendMessage)
	authed.GET("/chat/messages/:id", h.listChatMessages)
	authed.POST("/chat/:id/summarize", h.summarizeConversation)

	admin := authed.Group("", auth.RequireAdmin())
	admin.GET("/users/", h.listUsers)
	admin.POST("/users/", h.createUser)
	admin.GET("/users/:id", h.getUser)
	admin.PUT("/users/:id", h.updateUser)
	admin.POST("/users/bulk", h.bulkCreateUsers)
	admin.GET("/roles/", h.listRoles)
	admin.GET("/conversations/admin/all", h.listAllConversations)
	admin.GET("/conversations/user/:user_id", h.listUserConversations)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// login exchanges form-encoded credentials for a bearer token.
func (h *Handler) login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	log.WithField("username", username).Info("login attempt")

	user, err := h.store.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect username or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	token, err := h.auth.IssueToken(user.Username)
	if err != nil {
		log.WithField("username", username).WithError(err).Error("issue token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	log.WithField("username", username).Info("login successful")
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (h *Handler) currentUser(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	log.WithField("username", user.Username).Info("user profile accessed")
	c.JSON(http.StatusOK, user)
}

func pageParams(c *gin.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	return skip, limit
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// User management (admin only; RequireAdmin runs before these).

func (h *Handler) listUsers(c *gin.Context) {
	skip, limit := pageParams(c)
	users, err := h.store.ListUsers(c.Request.Context(), skip, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.store.GetUserByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

func (h *Handler) createUser(c *gin.Context) {
	admin, _ := auth.CurrentUser(c)
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.store.CreateUser(c.Request.Context(), req.Username, req.Email, req.Password, req.IsAdmin)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateUsername), errors.Is(err, store.ErrDuplicateEmail):
			log.WithField("username", req.Username).Warn("user creation failed: " + err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	log.WithField("username", admin.Username).Infof("created user %s", user.Username)
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) updateUser(c *gin.Context) {
	admin, _ := auth.CurrentUser(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var upd store.UserUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.store.UpdateUser(c.Request.Context(), id, upd)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, store.ErrDuplicateUsername), errors.Is(err, store.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	log.WithField("username", admin.Username).Infof("updated user %s", user.Username)
	c.JSON(http.StatusOK, user)
}

type bulkCreateRequest struct {
	Users []store.UserSpec `json:"users"`
}

func (h *Handler) bulkCreateUsers(c *gin.Context) {
	admin, _ := auth.CurrentUser(c)
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := h.store.BulkCreateUsers(c.Request.Context(), req.Users)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.WithField("username", admin.Username).
		Infof("bulk created %d users, %d failed", len(result.Success), len(result.Failed))
	c.JSON(http.StatusOK, result)
}

func (h *Handler) listRoles(c *gin.Context) {
	admin, _ := auth.CurrentUser(c)
	skip, limit := pageParams(c)
	roles, err := h.store.ListRoles(c.Request.Context(), skip, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.WithField("username", admin.Username).Info("role list accessed")
	c.JSON(http.StatusOK, roles)
}

// Conversations.

type createConversationRequest struct {
	Title string `json:"title"`
}

func (h *Handler) createConversation(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	conversation, err := h.store.CreateConversation(c.Request.Context(), user.ID, req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.WithField("username", user.Username).Infof("created conversation %d", conversation.ID)
	c.JSON(http.StatusCreated, conversation)
}

func (h *Handler) listConversations(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	conversations, err := h.store.ListConversations(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

func (h *Handler) getConversation(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	conversation, err := h.store.GetConversation(c.Request.Context(), user.ID, id)
	if err != nil {
		h.conversationError(c, err, user.Username, id)
		return
	}
	c.JSON(http.StatusOK, conversation)
}

func (h *Handler) replaceMessages(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var inputs []store.MessageInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.store.ReplaceMessages(c.Request.Context(), user.ID, id, inputs); err != nil {
		h.conversationError(c, err, user.Username, id)
		return
	}
	log.WithField("username", user.Username).Infof("replaced messages for conversation %d", id)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) listAllConversations(c *gin.Context) {
	admin, _ := auth.CurrentUser(c)
	conversations, err := h.store.ListAllConversations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.WithField("username", admin.Username).Info("all conversations accessed")
	c.JSON(http.StatusOK, conversations)
}

func (h *Handler) listUserConversations(c *gin.Context) {
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	skip, limit := pageParams(c)
	conversations, err := h.store.ListUserConversations(c.Request.Context(), targetID, skip, limit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// Chat turns.

type chatMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	message, err := h.chat.SendTurn(c.Request.Context(), user, id, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			h.conversationError(c, err, user.Username, id)
		case errors.Is(err, ai.ErrUpstream):
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, message)
}

func (h *Handler) listChatMessages(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	messages, err := h.store.ListMessages(c.Request.Context(), user.ID, id)
	if err != nil {
		h.conversationError(c, err, user.Username, id)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *Handler) summarizeConversation(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	title, err := h.chat.Summarize(c.Request.Context(), user, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			h.conversationError(c, err, user.Username, id)
		case errors.Is(err, ai.ErrUpstream):
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": title})
}

// conversationError answers 404 for missing-or-unowned conversations.
// The two cases are deliberately indistinguishable to the caller.
func (h *Handler) conversationError(c *gin.Context, err error, username string, conversationID int64) {
	if errors.Is(err, store.ErrNotFound) {
		log.WithField("username", username).
			Warnf("conversation %d not found or not owned", conversationID)
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
