package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lettervault/internal/domain"
)

// 错误类别 -> HTTP 状态码
var kindStatus = map[domain.ErrorKind]int{
	domain.KindUnauthorized: http.StatusUnauthorized,
	domain.KindForbidden:    http.StatusForbidden,
	domain.KindNotFound:     http.StatusNotFound,
	domain.KindDuplicate:    http.StatusConflict,
	domain.KindValidation:   http.StatusBadRequest,
	domain.KindExpired:      http.StatusGone,
	domain.KindRateLimited:  http.StatusTooManyRequests,
	domain.KindTokenExpired: http.StatusBadGateway,
	domain.KindInternal:     http.StatusInternalServerError,
}

// 错误类别 -> 中文消息
var kindMessages = map[domain.ErrorKind]string{
	domain.KindUnauthorized: "需要登录认证",
	domain.KindForbidden:    "无权访问该资源",
	domain.KindNotFound:     "资源不存在",
	domain.KindDuplicate:    "资源已存在",
	domain.KindValidation:   "请求参数格式错误",
	domain.KindExpired:      "操作窗口已过期",
	domain.KindRateLimited:  "请求过于频繁，请稍后重试",
	domain.KindTokenExpired: "远程邮箱授权已失效，请重新授权",
	domain.KindInternal:     "服务器内部错误，请稍后重试",
}

// RespondError 把业务错误映射为 HTTP 响应。
//
// 响应体携带机器可读的错误类别，前端据此分支；消息为面向用户的中文提示。
func RespondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)

	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg, ok := kindMessages[kind]
	if !ok {
		msg = kindMessages[domain.KindInternal]
	}

	c.JSON(status, Response{
		Code: status,
		Msg:  msg,
		Data: gin.H{"kind": string(kind)},
	})
}

// 通用错误消息
const (
	MsgInvalidRequest   = "请求参数格式错误"
	MsgRequestBodyEmpty = "请求体不能为空"
	MsgAuthRequired     = "需要登录认证"
	MsgTokenInvalid     = "无效的访问令牌"
	MsgTokenExpired     = "登录已过期，请重新登录"
)
