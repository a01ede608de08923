package handler

import (
	"net/http"

	"healthtrack-go/internal/service"
	"healthtrack-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// FallbackHeader 标记响应中的评估是降级结果。
const FallbackHeader = "X-Assessment-Fallback"

// AnalysisHandler 暴露无状态的症状分析接口。
// 该接口的响应体是评估对象本身（错误时为 {"error": ...}），不使用通用的 code/message 包装。
type AnalysisHandler struct {
	analysisService service.AnalysisService
}

// NewAnalysisHandler 创建一个新的 AnalysisHandler 实例。
func NewAnalysisHandler(analysisService service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// AnalyzeRequest 是分析接口的请求体。
type AnalyzeRequest struct {
	Symptoms []string `json:"symptoms"`
}

// Analyze 处理 POST /api/v1/analyze。
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Analyze: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	analysis, err := h.analysisService.Analyze(c.Request.Context(), req.Symptoms)
	if err != nil {
		status, message := analysisStatus(err)
		log.Warnf("Analyze: analysis failed, status: %d, error: %v", status, err)
		c.JSON(status, gin.H{"error": message})
		return
	}

	if analysis.Fallback {
		c.Header(FallbackHeader, "true")
	}
	c.JSON(http.StatusOK, analysis.Prediction)
}
