package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Resp struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// New guarantees data is never null in the payload.
func New(code int, msg string, data interface{}) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, New(CodeOK, CodeMsgMap[CodeOK], data))
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, New(CodeOK, CodeMsgMap[CodeOK], data))
}

// Fail writes the error both as the HTTP status and the envelope code.
func Fail(c *gin.Context, code int, customMsg string) {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	status := code
	if http.StatusText(status) == "" {
		status = http.StatusInternalServerError
	}
	c.JSON(status, New(code, msg, struct{}{}))
}

// AbortFail is Fail for middleware: it also stops the handler chain.
func AbortFail(c *gin.Context, code int, customMsg string) {
	Fail(c, code, customMsg)
	c.Abort()
}
