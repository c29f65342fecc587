package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/anything-backend/internal/http/response"
	"github.com/yungbote/anything-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GET /api/users/me
func (uh *UserHandler) GetMe(c *gin.Context) {
	me, err := uh.userService.GetMe(dbcOf(c))
	if err != nil {
		response.RespondServiceError(c, "get_me_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"me": me})
}

// GET /api/users/me/tokens
func (uh *UserHandler) GetTokens(c *gin.Context) {
	sum, err := uh.userService.GetTokens(dbcOf(c))
	if err != nil {
		response.RespondServiceError(c, "get_tokens_failed", err)
		return
	}
	response.RespondOK(c, sum)
}
