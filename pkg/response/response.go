package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

const (
	CodeSuccess = 200
	CodeFail    = 500
)

// Success 成功响应
func Success(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeSuccess, Msg: msg, Data: data})
}

// Fail 业务失败，HTTP 状态仍为 200，由 code 区分
func Fail(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeFail, Msg: msg, Data: data})
}

// AbortWithStatus 中断并返回指定 HTTP 状态
func AbortWithStatus(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Msg: msg})
}
