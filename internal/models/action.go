package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidAction 动作类型未知或字段不合法
var ErrInvalidAction = errors.New("invalid routing action")

// ActionType 路由动作类型
type ActionType string

const (
	ActionForwardUser    ActionType = "forward_user"     // 转接到系统用户
	ActionForwardNumber  ActionType = "forward_number"   // 转接到外部号码
	ActionForwardAIAgent ActionType = "forward_ai_agent" // 转接到 AI 语音坐席
	ActionVoicemail      ActionType = "voicemail"        // 语音留言
	ActionIVR            ActionType = "ivr"              // 进入 IVR 菜单
	ActionQueue          ActionType = "queue"            // 进入排队
	ActionMessage        ActionType = "message"          // 播放消息后挂断
	ActionReject         ActionType = "reject"           // 拒接
)

// Action 路由规则命中后执行的动作。实现类型是封闭集合，每种只携带自己的字段。
type Action interface {
	Type() ActionType
	Validate() error
	isAction()
}

type ForwardUserAction struct {
	UserID uint `json:"userId"`
}

type ForwardNumberAction struct {
	Number         string `json:"number"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

type ForwardAIAgentAction struct {
	ProviderID string `json:"providerId"`
	AgentID    string `json:"agentId,omitempty"`
}

type VoicemailAction struct {
	Greeting         string `json:"greeting,omitempty"`
	Transcribe       bool   `json:"transcribe"`
	MaxLengthSeconds int    `json:"maxLengthSeconds,omitempty"`
}

type IVRAction struct {
	MenuID string `json:"menuId"`
	Prompt string `json:"prompt,omitempty"`
}

type QueueAction struct {
	QueueName string `json:"queueName"`
}

type MessageAction struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
}

// RejectAction Reason 取 busy 或 rejected，为空时按 rejected 处理
type RejectAction struct {
	Reason string `json:"reason,omitempty"`
}

func (ForwardUserAction) Type() ActionType    { return ActionForwardUser }
func (ForwardNumberAction) Type() ActionType  { return ActionForwardNumber }
func (ForwardAIAgentAction) Type() ActionType { return ActionForwardAIAgent }
func (VoicemailAction) Type() ActionType      { return ActionVoicemail }
func (IVRAction) Type() ActionType            { return ActionIVR }
func (QueueAction) Type() ActionType          { return ActionQueue }
func (MessageAction) Type() ActionType        { return ActionMessage }
func (RejectAction) Type() ActionType         { return ActionReject }

func (ForwardUserAction) isAction()    {}
func (ForwardNumberAction) isAction()  {}
func (ForwardAIAgentAction) isAction() {}
func (VoicemailAction) isAction()      {}
func (IVRAction) isAction()            {}
func (QueueAction) isAction()          {}
func (MessageAction) isAction()        {}
func (RejectAction) isAction()         {}

// Deref 把指针形式的动作展开为值形式，nil 指针返回 nil
func Deref(a Action) Action {
	switch v := a.(type) {
	case *ForwardUserAction:
		if v != nil {
			return *v
		}
	case *ForwardNumberAction:
		if v != nil {
			return *v
		}
	case *ForwardAIAgentAction:
		if v != nil {
			return *v
		}
	case *VoicemailAction:
		if v != nil {
			return *v
		}
	case *IVRAction:
		if v != nil {
			return *v
		}
	case *QueueAction:
		if v != nil {
			return *v
		}
	case *MessageAction:
		if v != nil {
			return *v
		}
	case *RejectAction:
		if v != nil {
			return *v
		}
	default:
		return a
	}
	return nil
}

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// IsE164 判断号码是否为 E.164 格式
func IsE164(number string) bool {
	return e164Pattern.MatchString(number)
}

func (a ForwardUserAction) Validate() error {
	if a.UserID == 0 {
		return fmt.Errorf("%w: forward_user requires userId", ErrInvalidAction)
	}
	return nil
}

func (a ForwardNumberAction) Validate() error {
	if !IsE164(a.Number) {
		return fmt.Errorf("%w: forward_number requires an E.164 number, got %q", ErrInvalidAction, a.Number)
	}
	if a.TimeoutSeconds < 0 || a.TimeoutSeconds > 600 {
		return fmt.Errorf("%w: timeoutSeconds must be within 0-600", ErrInvalidAction)
	}
	return nil
}

func (a ForwardAIAgentAction) Validate() error {
	if strings.TrimSpace(a.ProviderID) == "" {
		return fmt.Errorf("%w: forward_ai_agent requires providerId", ErrInvalidAction)
	}
	return nil
}

func (a VoicemailAction) Validate() error {
	if a.MaxLengthSeconds < 0 || a.MaxLengthSeconds > 3600 {
		return fmt.Errorf("%w: maxLengthSeconds must be within 0-3600", ErrInvalidAction)
	}
	return nil
}

func (a IVRAction) Validate() error {
	if strings.TrimSpace(a.MenuID) == "" {
		return fmt.Errorf("%w: ivr requires menuId", ErrInvalidAction)
	}
	return nil
}

func (a QueueAction) Validate() error {
	if strings.TrimSpace(a.QueueName) == "" {
		return fmt.Errorf("%w: queue requires queueName", ErrInvalidAction)
	}
	return nil
}

func (a MessageAction) Validate() error {
	if strings.TrimSpace(a.Text) == "" {
		return fmt.Errorf("%w: message requires text", ErrInvalidAction)
	}
	return nil
}

func (a RejectAction) Validate() error {
	switch a.Reason {
	case "", "busy", "rejected":
		return nil
	}
	return fmt.Errorf("%w: reject reason must be busy or rejected, got %q", ErrInvalidAction, a.Reason)
}

// newAction 根据类型创建空的动作实例
func newAction(t ActionType) (Action, error) {
	switch t {
	case ActionForwardUser:
		return &ForwardUserAction{}, nil
	case ActionForwardNumber:
		return &ForwardNumberAction{}, nil
	case ActionForwardAIAgent:
		return &ForwardAIAgentAction{}, nil
	case ActionVoicemail:
		return &VoicemailAction{}, nil
	case ActionIVR:
		return &IVRAction{}, nil
	case ActionQueue:
		return &QueueAction{}, nil
	case ActionMessage:
		return &MessageAction{}, nil
	case ActionReject:
		return &RejectAction{}, nil
	}
	return nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidAction, t)
}

// RuleAction 动作的持久化/JSON 包装，序列化为带 type 判别字段的对象
type RuleAction struct {
	Action
}

// NewRuleAction 包装一个动作
func NewRuleAction(a Action) RuleAction {
	return RuleAction{Action: Deref(a)}
}

// Validate 校验动作存在且字段合法
func (r RuleAction) Validate() error {
	a := Deref(r.Action)
	if a == nil {
		return fmt.Errorf("%w: action is required", ErrInvalidAction)
	}
	return a.Validate()
}

// TypeName 动作类型名，空动作返回空串
func (r RuleAction) TypeName() ActionType {
	a := Deref(r.Action)
	if a == nil {
		return ""
	}
	return a.Type()
}

func (r RuleAction) MarshalJSON() ([]byte, error) {
	a := Deref(r.Action)
	if a == nil {
		return []byte("null"), nil
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	typ, _ := json.Marshal(a.Type())
	fields["type"] = typ
	return json.Marshal(fields)
}

// UnmarshalJSON 严格解析：未知类型或不属于该类型的字段都会报错
func (r *RuleAction) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		r.Action = nil
		return nil
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	rawType, ok := fields["type"]
	if !ok {
		return fmt.Errorf("%w: missing type", ErrInvalidAction)
	}
	var typ ActionType
	if err := json.Unmarshal(rawType, &typ); err != nil {
		return fmt.Errorf("%w: type must be a string", ErrInvalidAction)
	}
	delete(fields, "type")

	action, err := newAction(typ)
	if err != nil {
		return err
	}
	rest, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(rest))
	dec.DisallowUnknownFields()
	if err := dec.Decode(action); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidAction, typ, err)
	}

	// 存储值类型，便于调用方做类型断言
	r.Action = Deref(action)
	return nil
}
