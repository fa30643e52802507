package handlers

import (
	"strconv"

	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/code-100-precent/LingCRM/pkg/constants"
	"github.com/code-100-precent/LingCRM/pkg/response"
	"github.com/gin-gonic/gin"
)

// CreatePhoneLineRequest 创建线路
type CreatePhoneLineRequest struct {
	UserID      uint   `json:"userId"`
	Number      string `json:"number" binding:"required"`
	Alias       string `json:"alias"`
	Description string `json:"description"`
	Timezone    string `json:"timezone"`
	Enabled     *bool  `json:"enabled"`
}

// UpdatePhoneLineRequest 更新线路，未提供的字段保持不变
type UpdatePhoneLineRequest struct {
	UserID      *uint   `json:"userId"`
	Number      *string `json:"number"`
	Alias       *string `json:"alias"`
	Description *string `json:"description"`
	Timezone    *string `json:"timezone"`
	Enabled     *bool   `json:"enabled"`
}

// CreatePhoneLine Create phone line
func (h *Handlers) CreatePhoneLine(c *gin.Context) {
	var req CreatePhoneLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	line := models.PhoneLine{
		UserID:      req.UserID,
		Number:      req.Number,
		Alias:       req.Alias,
		Description: req.Description,
		Timezone:    req.Timezone,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}
	if err := models.CreatePhoneLine(getDB(c), &line); err != nil {
		failWithError(c, "Create failed", err)
		return
	}
	response.Success(c, "Phone line created", line)
}

// ListPhoneLines List phone lines, optionally filtered by owner
func (h *Handlers) ListPhoneLines(c *gin.Context) {
	var userID uint
	if s := c.Query(constants.QueryUser); s != "" {
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			response.Fail(c, "Parameter error", "Invalid userId")
			return
		}
		userID = uint(id)
	}

	lines, err := models.ListPhoneLines(getDB(c), userID)
	if err != nil {
		response.Fail(c, "Query failed", err.Error())
		return
	}
	response.Success(c, "Query successful", lines)
}

// GetPhoneLine Get phone line
func (h *Handlers) GetPhoneLine(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	line, err := models.GetPhoneLineByID(getDB(c), id)
	if err != nil {
		failWithError(c, "Query failed", err)
		return
	}
	response.Success(c, "Query successful", line)
}

// UpdatePhoneLine Update phone line
func (h *Handlers) UpdatePhoneLine(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	db := getDB(c)
	line, err := models.GetPhoneLineByID(db, id)
	if err != nil {
		failWithError(c, "Query failed", err)
		return
	}

	var req UpdatePhoneLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}
	if req.UserID != nil {
		line.UserID = *req.UserID
	}
	if req.Number != nil {
		line.Number = *req.Number
	}
	if req.Alias != nil {
		line.Alias = *req.Alias
	}
	if req.Description != nil {
		line.Description = *req.Description
	}
	if req.Timezone != nil {
		line.Timezone = *req.Timezone
	}
	if req.Enabled != nil {
		line.Enabled = *req.Enabled
	}

	if err := models.UpdatePhoneLine(db, line); err != nil {
		failWithError(c, "Update failed", err)
		return
	}
	// 启停线路会改变匹配结果
	h.rulesChanged(c.Request.Context(), line.ID, "update_line")
	response.Success(c, "Phone line updated", line)
}

// DeletePhoneLine Delete phone line and deactivate its rules
func (h *Handlers) DeletePhoneLine(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := models.DeletePhoneLine(getDB(c), id); err != nil {
		failWithError(c, "Delete failed", err)
		return
	}
	h.rulesChanged(c.Request.Context(), id, "delete_line")
	response.Success(c, "Phone line deleted", nil)
}

// ListCallLogs Recent routed calls of a phone line
func (h *Handlers) ListCallLogs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query(constants.QueryLimit))

	logs, err := models.ListCallLogs(getDB(c), id, limit)
	if err != nil {
		response.Fail(c, "Query failed", err.Error())
		return
	}
	response.Success(c, "Query successful", logs)
}
