package handler

import (
	"net/http"
	"strconv"

	"healthtrack-go/internal/service"
	"healthtrack-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	return page, size
}

// ListProfiles 分页返回全部用户档案。
func (h *AdminHandler) ListProfiles(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	result, err := h.adminService.ListProfiles(c.Request.Context(), viewer, page, size)
	if err != nil {
		log.Error("ListProfiles: Failed to list profiles", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取用户档案失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// ListEntries 分页返回全部用户的症状记录。
func (h *AdminHandler) ListEntries(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	result, err := h.adminService.ListEntries(c.Request.Context(), viewer, page, size)
	if err != nil {
		log.Error("ListEntries: Failed to list entries", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取症状记录失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}
