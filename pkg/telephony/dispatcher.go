package telephony

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go/twiml"
)

// ContentType TwiML 响应类型
const ContentType = "text/xml"

var ErrNoAction = errors.New("no action to render")

// Config 渲染动作所需的地址和默认值
type Config struct {
	AIAgentBaseURL       string
	IVRBaseURL           string
	VoicemailCallbackURL string
	DefaultGreeting      string
	DefaultVoice         string
	DefaultLanguage      string
}

// Dispatcher 把路由动作渲染成 TwiML 语音响应
type Dispatcher struct {
	cfg Config
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.DefaultGreeting == "" {
		cfg.DefaultGreeting = "Please leave a message after the tone."
	}
	return &Dispatcher{cfg: cfg}
}

// Render 渲染动作
func (d *Dispatcher) Render(action models.Action) (string, error) {
	action = models.Deref(action)
	if action == nil {
		return "", ErrNoAction
	}
	if err := action.Validate(); err != nil {
		return "", err
	}

	var verbs []twiml.Element
	switch a := action.(type) {
	case models.ForwardUserAction:
		verbs = []twiml.Element{&twiml.VoiceDial{
			InnerElements: []twiml.Element{&twiml.VoiceClient{Identity: fmt.Sprintf("user-%d", a.UserID)}},
		}}
	case models.ForwardNumberAction:
		dial := &twiml.VoiceDial{Number: a.Number}
		if a.TimeoutSeconds > 0 {
			dial.Timeout = strconv.Itoa(a.TimeoutSeconds)
		}
		verbs = []twiml.Element{dial}
	case models.ForwardAIAgentAction:
		verbs = []twiml.Element{&twiml.VoiceRedirect{Url: d.agentURL(a)}}
	case models.VoicemailAction:
		verbs = d.voicemail(a)
	case models.IVRAction:
		if a.Prompt != "" {
			verbs = append(verbs, d.say(a.Prompt, "", ""))
		}
		verbs = append(verbs, &twiml.VoiceRedirect{Url: joinURL(d.cfg.IVRBaseURL, a.MenuID)})
	case models.QueueAction:
		verbs = []twiml.Element{&twiml.VoiceEnqueue{Name: a.QueueName}}
	case models.MessageAction:
		verbs = []twiml.Element{d.say(a.Text, a.Voice, a.Language), &twiml.VoiceHangup{}}
	case models.RejectAction:
		reason := a.Reason
		if reason == "" {
			reason = "rejected"
		}
		verbs = []twiml.Element{&twiml.VoiceReject{Reason: reason}}
	default:
		return "", fmt.Errorf("%w: unsupported action %T", models.ErrInvalidAction, action)
	}

	doc, err := twiml.Voice(verbs)
	if err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{
		"action": action.Type(),
		"verbs":  len(verbs),
	}).Debug("TwiML rendered")
	return doc, nil
}

// RenderDefault 无规则匹配时的兜底：播放默认提示并留言
func (d *Dispatcher) RenderDefault() (string, error) {
	return d.Render(models.VoicemailAction{})
}

// RenderError 出现配置错误时播放提示并挂断
func (d *Dispatcher) RenderError() (string, error) {
	return twiml.Voice([]twiml.Element{
		d.say("We are unable to take your call right now. Please try again later.", "", ""),
		&twiml.VoiceHangup{},
	})
}

func (d *Dispatcher) voicemail(a models.VoicemailAction) []twiml.Element {
	greeting := a.Greeting
	if greeting == "" {
		greeting = d.cfg.DefaultGreeting
	}
	record := &twiml.VoiceRecord{
		Action:     d.cfg.VoicemailCallbackURL,
		PlayBeep:   "true",
		Transcribe: strconv.FormatBool(a.Transcribe),
	}
	if a.MaxLengthSeconds > 0 {
		record.MaxLength = strconv.Itoa(a.MaxLengthSeconds)
	}
	return []twiml.Element{d.say(greeting, "", ""), record, &twiml.VoiceHangup{}}
}

func (d *Dispatcher) say(text, voice, language string) *twiml.VoiceSay {
	if voice == "" {
		voice = d.cfg.DefaultVoice
	}
	if language == "" {
		language = d.cfg.DefaultLanguage
	}
	return &twiml.VoiceSay{Message: text, Voice: voice, Language: language}
}

func (d *Dispatcher) agentURL(a models.ForwardAIAgentAction) string {
	u := joinURL(d.cfg.AIAgentBaseURL, a.ProviderID)
	if a.AgentID == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + url.Values{"agentId": []string{a.AgentID}}.Encode()
}

func joinURL(base, segment string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(segment)
}
