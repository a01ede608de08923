package handler

import (
	"errors"
	"net/http"
	"strconv"

	"healthtrack-go/internal/service"
	"healthtrack-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// EntryHandler 负责症状提交以及记录的查询、删除和检索。
type EntryHandler struct {
	intakeService service.IntakeService
	entryService  service.EntryService
}

// NewEntryHandler 创建一个新的 EntryHandler 实例。
func NewEntryHandler(intakeService service.IntakeService, entryService service.EntryService) *EntryHandler {
	return &EntryHandler{intakeService: intakeService, entryService: entryService}
}

// SubmitRequest 是症状提交的请求体。
type SubmitRequest struct {
	Symptoms []string `json:"symptoms"`
	Notes    string   `json:"notes"`
}

// Submit 处理 POST /api/v1/entries：写入记录、分析、写入评估。
func (h *EntryHandler) Submit(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Submit: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	result, err := h.intakeService.Submit(c.Request.Context(), viewer, req.Symptoms, req.Notes)
	if err != nil {
		if errors.Is(err, service.ErrEntryNotSaved) {
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "保存症状记录失败", "data": nil})
			return
		}
		status, message := analysisStatus(err)
		var data interface{}
		if result != nil {
			// 记录已写入，但没有评估
			data = gin.H{"entry": result.Entry}
		}
		c.JSON(status, gin.H{"code": status, "message": message, "data": data})
		return
	}

	if result.Fallback {
		c.Header(FallbackHeader, "true")
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// List 返回当前用户的全部记录，最新的在前。
func (h *EntryHandler) List(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	entries, err := h.entryService.List(c.Request.Context(), viewer)
	if err != nil {
		log.Errorf("List entries failed, user: %s, error: %v", viewer.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取记录失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": entries})
}

// Get 返回一条记录及其评估。
func (h *EntryHandler) Get(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	detail, err := h.entryService.Get(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		if notFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "记录不存在", "data": nil})
			return
		}
		log.Errorf("Get entry failed, id: %s, error: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取记录失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": detail})
}

// Delete 删除当前用户的一条记录。
func (h *EntryHandler) Delete(c *gin.Context) {
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.entryService.Delete(c.Request.Context(), viewer, id); err != nil {
		if notFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "记录不存在", "data": nil})
			return
		}
		log.Errorf("Delete entry failed, id: %s, error: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "删除记录失败", "data": nil})
		return
	}
	log.Infof("Entry '%s' deleted by user '%s'", id, viewer.UserID)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "删除成功", "data": nil})
}

// Search 在当前用户的记录中做全文检索。
func (h *EntryHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		log.Warnf("[EntryHandler] 搜索请求失败: query 参数为空")
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的查询参数", "data": nil})
		return
	}
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size <= 0 {
		size = 10
	}

	results, err := h.entryService.Search(c.Request.Context(), viewer, query, size)
	if err != nil {
		log.Errorf("[EntryHandler] 检索失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "搜索失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": results})
}
