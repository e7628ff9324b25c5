// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "fable-ai-api/pkg/errors"
)

// ErrorDetail 错误详情
type ErrorDetail struct {
	ErrorCode string       `json:"error_code,omitempty"`
	Details   string       `json:"details,omitempty"`
	Fields    []FieldError `json:"fields,omitempty"`
}

// FieldError 字段级校验错误
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Error   *ErrorDetail `json:"error,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// Error 返回错误响应
func Error(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, ErrorResponse{
		Code:    httpCode,
		Message: message,
		TraceID: c.GetString("trace_id"),
	})
}

// ErrorWithDetail 返回带详情的错误响应
func ErrorWithDetail(c *gin.Context, httpCode int, message string, detail *ErrorDetail) {
	c.JSON(httpCode, ErrorResponse{
		Code:    httpCode,
		Message: message,
		Error:   detail,
		TraceID: c.GetString("trace_id"),
	})
}

// AbortWithDetail 返回错误响应并终止后续处理
func AbortWithDetail(c *gin.Context, httpCode int, message string, detail *ErrorDetail) {
	c.AbortWithStatusJSON(httpCode, ErrorResponse{
		Code:    httpCode,
		Message: message,
		Error:   detail,
		TraceID: c.GetString("trace_id"),
	})
}

// BadRequest 返回 400 错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// InternalError 返回 500 错误
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// ServiceUnavailable 返回 503 错误
func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, message)
}

// AppError 将业务错误转换为错误响应，底层错误不会下发给调用方
func AppError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)
	ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	})
}

// BindError 将请求绑定/校验错误转换为 400 响应
func BindError(c *gin.Context, err error) {
	detail := &ErrorDetail{ErrorCode: string(apperrors.CodeInvalidParam)}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		detail.Fields = make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			detail.Fields = append(detail.Fields, FieldError{
				Field: fe.Field(),
				Rule:  fe.Tag(),
				Param: fe.Param(),
			})
		}
	} else {
		detail.Details = "request body must be a JSON object"
	}

	ErrorWithDetail(c, http.StatusBadRequest, "invalid request", detail)
}
