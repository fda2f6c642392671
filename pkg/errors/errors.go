package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// 对外的错误消息 key，由响应层直接透出
const (
	ERROR_INTERNAL         = "error.internal"
	ERROR_INVALIDARGUMENT  = "error.invalid_argument"
	ERROR_NOTFOUND         = "error.not_found"
	ERROR_FORBIDDEN        = "error.forbidden"
	ERROR_UNAUTHORIZED     = "error.unauthorized"
	ERROR_EXIST            = "error.already_exist"
	ERROR_CONFIGURATION    = "error.no_available_provider"
	ERROR_PROVIDER         = "error.provider_unavailable"
	ERROR_MESSAGE_TOO_LONG = "error.message_too_long"
	ERROR_TURN_IN_FLIGHT   = "error.conversation_busy"
)

type CustomizedError struct {
	cause   error
	message string
	trace   []string
	wrap    error
	code    int
}

func (e *CustomizedError) Code(c int) *CustomizedError {
	e.code = c
	return e
}

func (e *CustomizedError) GetCode() int {
	return e.code
}

func New(trace, message string, err error) *CustomizedError {
	return &CustomizedError{
		cause:   err,
		message: message,
		trace:   []string{trace},
		code:    http.StatusInternalServerError,
	}
}

func Wrap(err error, trace, message string) *CustomizedError {
	ce := &CustomizedError{
		cause:   err,
		message: message,
		trace:   []string{trace},
		wrap:    err,
	}
	if income, ok := err.(*CustomizedError); ok {
		ce.code = income.code
	}
	return ce
}

func Trace(trace string, err error) *CustomizedError {
	if ce, ok := err.(*CustomizedError); ok {
		ce.trace = append(ce.trace, trace)
		return ce
	}
	return Wrap(err, trace, err.Error())
}

func (e *CustomizedError) Message() string {
	if e.message == "" && e.cause != nil {
		return e.cause.Error()
	}
	return e.message
}

// Message 提取错误消息 key，普通 error 返回其文案
func Message(err error) string {
	if err == nil {
		return ""
	}
	if ce, ok := err.(*CustomizedError); ok {
		return ce.Message()
	}
	return err.Error()
}

func (e *CustomizedError) Unwrap() error {
	return e.cause
}

func (e *CustomizedError) Error() string {
	otherDetails := `""`
	if ce, ok := e.wrap.(*CustomizedError); ok {
		otherDetails = ce.Error()
	} else if e.wrap != nil {
		otherDetails = fmt.Sprint("\"", e.wrap.Error(), "\"")
	}
	return fmt.Sprintf(`{"trace":"%s","code":%d,"msg":"%s","error":"%v","wrapd":%s}`, strings.Join(e.trace, "->"), e.code, e.message, e.cause, otherDetails)
}
