package handlers

import (
	"time"

	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/code-100-precent/LingCRM/pkg/response"
	"github.com/code-100-precent/LingCRM/pkg/routing"
	"github.com/gin-gonic/gin"
)

// CreateRoutingRuleRequest 创建规则
type CreateRoutingRuleRequest struct {
	Name          string                  `json:"name" binding:"required"`
	Description   string                  `json:"description"`
	Priority      int                     `json:"priority"`
	IsActive      *bool                   `json:"isActive"`
	Condition     models.TriggerCondition `json:"condition" binding:"required"`
	Schedule      *models.Schedule        `json:"schedule"`
	NoAnswerRings int                     `json:"noAnswerRings"`
	Action        models.RuleAction       `json:"action"`
}

// UpdateRoutingRuleRequest 更新规则，未提供的字段保持不变；clearSchedule 移除时间计划
type UpdateRoutingRuleRequest struct {
	Name          *string                  `json:"name"`
	Description   *string                  `json:"description"`
	Priority      *int                     `json:"priority"`
	IsActive      *bool                    `json:"isActive"`
	Condition     *models.TriggerCondition `json:"condition"`
	Schedule      *models.Schedule         `json:"schedule"`
	ClearSchedule bool                     `json:"clearSchedule"`
	NoAnswerRings *int                     `json:"noAnswerRings"`
	Action        *models.RuleAction       `json:"action"`
}

// ReorderRequest 新的完整规则顺序
type ReorderRequest struct {
	RuleIDs []uint `json:"ruleIds" binding:"required"`
}

// ToggleRequest isActive 为空时取反
type ToggleRequest struct {
	IsActive *bool `json:"isActive"`
}

// TestRoutingRequest 试运行匹配，at 为空时使用当前时间
type TestRoutingRequest struct {
	routing.CallContext
	At *time.Time `json:"at"`
}

// TestRoutingResult 试运行结果
type TestRoutingResult struct {
	Matched     bool                `json:"matched"`
	Disposition string              `json:"disposition"`
	At          time.Time           `json:"at"`
	Rule        *models.RoutingRule `json:"rule,omitempty"`
	TwiML       string              `json:"twiml"`
}

// ListRoutingRules All rules of a phone line in match order
func (h *Handlers) ListRoutingRules(c *gin.Context) {
	lineID, ok := parseID(c)
	if !ok {
		return
	}
	db := getDB(c)
	if _, err := models.GetPhoneLineByID(db, lineID); err != nil {
		failWithError(c, "Query failed", err)
		return
	}

	rules, err := models.ListRoutingRulesByPhoneLine(db, lineID)
	if err != nil {
		response.Fail(c, "Query failed", err.Error())
		return
	}
	response.Success(c, "Query successful", rules)
}

// CreateRoutingRule Create a rule on a phone line
func (h *Handlers) CreateRoutingRule(c *gin.Context) {
	lineID, ok := parseID(c)
	if !ok {
		return
	}
	db := getDB(c)
	if _, err := models.GetPhoneLineByID(db, lineID); err != nil {
		failWithError(c, "Create failed", err)
		return
	}

	var req CreateRoutingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	rule := models.RoutingRule{
		PhoneLineID:   lineID,
		Name:          req.Name,
		Description:   req.Description,
		Priority:      req.Priority,
		IsActive:      req.IsActive == nil || *req.IsActive,
		Condition:     req.Condition,
		Schedule:      req.Schedule,
		NoAnswerRings: req.NoAnswerRings,
		Action:        req.Action,
	}
	if err := models.CreateRoutingRule(db, &rule); err != nil {
		failWithError(c, "Create failed", err)
		return
	}
	h.rulesChanged(c.Request.Context(), lineID, "create_rule")
	response.Success(c, "Routing rule created", rule)
}

// GetRoutingRule Get rule
func (h *Handlers) GetRoutingRule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rule, err := models.GetRoutingRuleByID(getDB(c), id)
	if err != nil {
		failWithError(c, "Query failed", err)
		return
	}
	response.Success(c, "Query successful", rule)
}

// UpdateRoutingRule Update rule fields except line and counters
func (h *Handlers) UpdateRoutingRule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	db := getDB(c)
	rule, err := models.GetRoutingRuleByID(db, id)
	if err != nil {
		failWithError(c, "Query failed", err)
		return
	}

	var req UpdateRoutingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}
	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.Condition != nil {
		rule.Condition = *req.Condition
	}
	if req.ClearSchedule {
		rule.Schedule = nil
	} else if req.Schedule != nil {
		rule.Schedule = req.Schedule
	}
	if req.NoAnswerRings != nil {
		rule.NoAnswerRings = *req.NoAnswerRings
	}
	if req.Action != nil {
		rule.Action = *req.Action
	}

	if err := models.UpdateRoutingRule(db, rule); err != nil {
		failWithError(c, "Update failed", err)
		return
	}
	h.rulesChanged(c.Request.Context(), rule.PhoneLineID, "update_rule")
	response.Success(c, "Routing rule updated", rule)
}

// ToggleRoutingRule Enable or disable rule
func (h *Handlers) ToggleRoutingRule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	db := getDB(c)
	rule, err := models.GetRoutingRuleByID(db, id)
	if err != nil {
		failWithError(c, "Query failed", err)
		return
	}

	var req ToggleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, "Parameter error", err.Error())
			return
		}
	}
	active := !rule.IsActive
	if req.IsActive != nil {
		active = *req.IsActive
	}

	if err := models.SetRoutingRuleActive(db, id, active); err != nil {
		failWithError(c, "Update failed", err)
		return
	}
	rule.IsActive = active
	h.rulesChanged(c.Request.Context(), rule.PhoneLineID, "toggle_rule")
	response.Success(c, "Routing rule updated", rule)
}

// DeleteRoutingRule Delete rule
func (h *Handlers) DeleteRoutingRule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	db := getDB(c)
	rule, err := models.GetRoutingRuleByID(db, id)
	if err != nil {
		failWithError(c, "Delete failed", err)
		return
	}
	if err := models.DeleteRoutingRule(db, id); err != nil {
		failWithError(c, "Delete failed", err)
		return
	}
	h.rulesChanged(c.Request.Context(), rule.PhoneLineID, "delete_rule")
	response.Success(c, "Routing rule deleted", nil)
}

// ReorderRoutingRules Rewrite the order of all rules of a phone line
func (h *Handlers) ReorderRoutingRules(c *gin.Context) {
	lineID, ok := parseID(c)
	if !ok {
		return
	}
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}

	db := getDB(c)
	if err := models.ReorderRoutingRules(db, lineID, req.RuleIDs); err != nil {
		failWithError(c, "Reorder failed", err)
		return
	}
	h.rulesChanged(c.Request.Context(), lineID, "reorder_rules")

	rules, err := models.ListRoutingRulesByPhoneLine(db, lineID)
	if err != nil {
		response.Fail(c, "Query failed", err.Error())
		return
	}
	response.Success(c, "Routing rules reordered", rules)
}

// TestRoutingRules Dry-run the matcher, the trigger counter is not touched
func (h *Handlers) TestRoutingRules(c *gin.Context) {
	lineID, ok := parseID(c)
	if !ok {
		return
	}
	var req TestRoutingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}
	if err := req.CallContext.Validate(); err != nil {
		response.Fail(c, "Parameter error", err.Error())
		return
	}
	at := time.Now()
	if req.At != nil {
		at = *req.At
	}

	rule, err := h.matcher.FindMatchingRule(c.Request.Context(), lineID, req.CallContext, at)
	if err != nil {
		if routing.IsConfigError(err) {
			response.Fail(c, "Routing configuration error", err.Error())
			return
		}
		response.Fail(c, "Routing failed", err.Error())
		return
	}

	result := TestRoutingResult{
		Matched:     rule != nil,
		Disposition: req.CallContext.Disposition(),
		At:          at,
		Rule:        rule,
	}
	if rule != nil {
		result.TwiML, err = h.dispatcher.Render(rule.Action.Action)
	} else {
		result.TwiML, err = h.dispatcher.RenderDefault()
	}
	if err != nil {
		response.Fail(c, "Render failed", err.Error())
		return
	}
	response.Success(c, "Test completed", result)
}
