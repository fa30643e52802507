package constants

// gin 上下文键
const (
	DbField        = "_lingcrm_db"
	RequestIDField = "_lingcrm_request_id"
)

// 请求头
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderRequestID = "X-Request-ID"
)

// 事件来源
const (
	SourceTelephonyWebhook = "telephony.webhook"
	SourceRoutingAPI       = "routing.api"
	SourceOrphanSweeper    = "task.orphan_sweeper"
)

// 路由参数
const (
	ParamID    = "id"
	QueryLimit = "limit"
	QueryUser  = "userId"
)
