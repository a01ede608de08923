package handler

import (
	"fmt"
	"net/http"

	"healthtrack-go/internal/service"
	"healthtrack-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DashboardHandler 负责仪表盘和历史导出。
type DashboardHandler struct {
	dashboardService service.DashboardService
}

// NewDashboardHandler 创建一个新的 DashboardHandler 实例。
func NewDashboardHandler(dashboardService service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// Get 返回当前用户的记录、评估和汇总。
func (h *DashboardHandler) Get(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	dashboard, err := h.dashboardService.Load(c.Request.Context(), viewer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "加载仪表盘失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": dashboard})
}

// Export 以附件形式下载 CSV 历史记录。
func (h *DashboardHandler) Export(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	file, err := h.dashboardService.Export(c.Request.Context(), viewer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "导出失败", "data": nil})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", file.Content)
}

// Archive 把导出上传到对象存储并返回下载链接。
func (h *DashboardHandler) Archive(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	archived, err := h.dashboardService.Archive(c.Request.Context(), viewer)
	if err != nil {
		log.Errorf("Archive export failed, user: %s, error: %v", viewer.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "归档导出失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": archived})
}
