package handler

import (
	"github.com/gin-gonic/gin"

	"grimoire-api/internal/service"
	resp "grimoire-api/internal/transport/http/response"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type credentialsIn struct {
	// Email format is validated in the service after normalization, so a
	// padded address like "A@B.com " is accepted and folded.
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var in credentialsIn
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Fail(c, resp.CodeBadRequest, err.Error())
		return
	}
	u, err := h.svc.Signup(in.Email, in.Password)
	if err != nil {
		fail(c, err)
		return
	}
	resp.Created(c, gin.H{"message": "user created", "email": u.Email})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var in credentialsIn
	if err := c.ShouldBindJSON(&in); err != nil {
		resp.Fail(c, resp.CodeBadRequest, err.Error())
		return
	}
	userID, token, err := h.svc.Login(in.Email, in.Password)
	if err != nil {
		fail(c, err)
		return
	}
	resp.OK(c, gin.H{"userId": userID, "token": token})
}
