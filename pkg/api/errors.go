package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// 错误代码常量
const (
	// 通用错误
	ErrCodeInternalServerError = http.StatusInternalServerError // 服务器内部错误
	ErrCodeBadRequest          = http.StatusBadRequest          // 请求参数错误
	ErrCodeNotFound            = http.StatusNotFound            // 资源不存在
)

// APIError 自定义API错误类型
type APIError struct {
	Code    int         // HTTP 状态码
	Message string      // 错误消息
	Err     error       // 原始错误
	Data    interface{} // 附加数据（可选）
}

// Error 实现 error 接口
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// NewAPIError 创建新的API错误
func NewAPIError(code int, message string, err error) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewBadRequestError 创建请求参数错误
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// NewNodeNotFoundError 创建节点不存在错误
func NewNodeNotFoundError(node string) *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("节点 %s 不存在", node),
	}
}

// NewInternalServerError 创建服务器内部错误
func NewInternalServerError(err error) *APIError {
	return &APIError{
		Code:    ErrCodeInternalServerError,
		Message: "服务器内部错误",
		Err:     err,
	}
}

// HandleError 统一错误处理函数
func HandleError(c echo.Context, err error) error {
	// 记录错误日志
	logrus.WithFields(logrus.Fields{
		"error":      err.Error(),
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		"path":       c.Request().URL.Path,
		"method":     c.Request().Method,
	}).Error("API 错误")

	// 处理自定义错误
	if apiErr, ok := err.(*APIError); ok {
		resp := Response{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		}
		if apiErr.Err != nil && IsDebugMode() {
			resp.Data = map[string]string{
				"error_detail": apiErr.Err.Error(),
			}
		}

		// 返回json格式的错误响应
		return c.JSON(apiErr.Code, resp)
	}

	// 处理未知错误
	return c.JSON(http.StatusInternalServerError, Response{
		Code:    http.StatusInternalServerError,
		Message: "服务器内部错误",
	})
}

// IsDebugMode 判断是否为调试模式
func IsDebugMode() bool {
	return logrus.GetLevel() >= logrus.DebugLevel
}
