package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/code-100-precent/LingCRM/pkg/constants"
	"github.com/code-100-precent/LingCRM/pkg/events"
	"github.com/code-100-precent/LingCRM/pkg/logger"
	"github.com/code-100-precent/LingCRM/pkg/response"
	"github.com/code-100-precent/LingCRM/pkg/routing"
	"github.com/code-100-precent/LingCRM/pkg/telephony"
	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"
)

// VoicemailCallback 录音完成回调字段
type VoicemailCallback struct {
	CallSid           string `form:"CallSid" binding:"required"`
	From              string `form:"From"`
	To                string `form:"To"`
	RecordingURL      string `form:"RecordingUrl"`
	RecordingDuration int    `form:"RecordingDuration"`
	TranscriptionText string `form:"TranscriptionText"`
}

// HandleInboundCall 电话网关来电回调：解析线路，匹配规则并返回 TwiML
func (h *Handlers) HandleInboundCall(c *gin.Context) {
	var call telephony.InboundCall
	if err := c.ShouldBind(&call); err != nil {
		response.AbortWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}
	callCtx := telephony.Classify(call)
	if err := callCtx.Validate(); err != nil {
		response.AbortWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	data := map[string]interface{}{
		"callSid":     call.CallSid,
		"from":        call.From,
		"to":          call.To,
		"disposition": callCtx.Disposition(),
	}

	var (
		doc       string
		err       error
		eventType string
		action    string
	)

	line, lineErr := models.GetPhoneLineByNumber(getDB(c), call.To)
	switch {
	case errors.Is(lineErr, models.ErrPhoneLineNotFound):
		logger.Warn("inbound call to unknown number", zap.String("callSid", call.CallSid), zap.String("to", call.To))
		doc, err = h.dispatcher.RenderDefault()
		eventType = events.TypeNoMatch
		action = string(models.ActionVoicemail)
	case lineErr != nil:
		logger.Error("resolve phone line failed", zap.String("callSid", call.CallSid), zap.Error(lineErr))
		doc, err = h.dispatcher.RenderDefault()
		eventType = events.TypeRoutingError
		action = string(models.ActionVoicemail)
		data["error"] = lineErr.Error()
	default:
		data["phoneLineId"] = line.ID
		doc, eventType, action, err = h.routeCall(c.Request.Context(), line.ID, callCtx, now, data)
	}
	if err != nil {
		logger.Error("render TwiML failed", zap.String("callSid", call.CallSid), zap.Error(err))
		response.AbortWithStatus(c, http.StatusInternalServerError, "failed to build call response")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordInboundCall(callCtx.Disposition(), action)
	}
	if h.bus != nil {
		h.bus.Publish(events.Event{
			Type:   eventType,
			Source: constants.SourceTelephonyWebhook,
			Data:   data,
		})
	}
	c.Data(http.StatusOK, telephony.ContentType, []byte(doc))
}

// routeCall 匹配线路规则并渲染；返回文档、事件类型和动作名
func (h *Handlers) routeCall(ctx context.Context, lineID uint, callCtx routing.CallContext, now time.Time, data map[string]interface{}) (string, string, string, error) {
	rule, err := h.matcher.FindMatchingRule(ctx, lineID, callCtx, now)
	if err != nil {
		data["error"] = err.Error()
		var cfgErr *routing.ConfigError
		if errors.As(err, &cfgErr) {
			if cfgErr.RuleID != 0 {
				data["ruleId"] = cfgErr.RuleID
			}
			logger.Error("routing rule misconfigured", zap.Uint("phoneLineId", lineID), zap.Uint("ruleId", cfgErr.RuleID), zap.Error(err))
			doc, rerr := h.dispatcher.RenderError()
			return doc, events.TypeRoutingError, "error", rerr
		}
		logger.Error("routing lookup failed", zap.Uint("phoneLineId", lineID), zap.Error(err))
		doc, rerr := h.dispatcher.RenderDefault()
		return doc, events.TypeRoutingError, string(models.ActionVoicemail), rerr
	}

	if rule == nil {
		doc, rerr := h.dispatcher.RenderDefault()
		return doc, events.TypeNoMatch, string(models.ActionVoicemail), rerr
	}

	data["ruleId"] = rule.ID
	data["actionType"] = string(rule.Action.TypeName())

	doc, err := h.dispatcher.Render(rule.Action.Action)
	if err != nil {
		data["error"] = err.Error()
		logger.Error("render routing action failed", zap.Uint("ruleId", rule.ID), zap.Error(err))
		doc, rerr := h.dispatcher.RenderError()
		return doc, events.TypeRoutingError, "error", rerr
	}

	// 计数失败不影响本次路由
	_ = h.matcher.RecordTrigger(ctx, rule, now)

	logger.Info("inbound call routed",
		zap.Uint("phoneLineId", lineID),
		zap.Uint("ruleId", rule.ID),
		zap.String("disposition", callCtx.Disposition()),
		zap.String("action", string(rule.Action.TypeName())))
	return doc, events.TypeRuleTriggered, string(rule.Action.TypeName()), nil
}

// HandleVoicemailCallback 录音完成回调，记录后挂断
func (h *Handlers) HandleVoicemailCallback(c *gin.Context) {
	var cb VoicemailCallback
	if err := c.ShouldBind(&cb); err != nil {
		response.AbortWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}
	logger.Info("voicemail recorded",
		zap.String("callSid", cb.CallSid),
		zap.String("from", cb.From),
		zap.String("to", cb.To),
		zap.String("recordingUrl", cb.RecordingURL),
		zap.Int("durationSeconds", cb.RecordingDuration),
		zap.Bool("transcribed", cb.TranscriptionText != ""))

	doc, err := twiml.Voice([]twiml.Element{&twiml.VoiceHangup{}})
	if err != nil {
		response.AbortWithStatus(c, http.StatusInternalServerError, "failed to build call response")
		return
	}
	c.Data(http.StatusOK, telephony.ContentType, []byte(doc))
}
