package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/service"
)

type planPayload struct {
	Prompt string `json:"prompt" binding:"required,max=2000"`
}

// GeneratePlan 把用户目标转发给聊天补全接口，生成一日日程
func (a *API) GeneratePlan(c *gin.Context) {
	var payload planPayload
	if !bindJSON(c, &payload, "缺少 prompt 或格式错误") {
		return
	}

	items, err := a.planner.GeneratePlan(c.Request.Context(), payload.Prompt)
	if err != nil {
		if errors.Is(err, service.ErrAIAPIKeyMissing) {
			respondError(c, http.StatusServiceUnavailable, "AI 服务未配置")
			return
		}
		a.logger.Error("generate plan failed", "error", err)
		respondError(c, http.StatusInternalServerError, "AI 服务暂时不可用")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"result": items})
}
