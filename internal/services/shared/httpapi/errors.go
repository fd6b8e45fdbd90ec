package httpapi

import (
	stderrors "errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/louisbranch/gathering.space/internal/platform/errors"
)

// ErrorBody is the JSON envelope for every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the machine code plus localized copy for one failure.
type ErrorDetail struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WriteError renders err using its domain code. Errors without a code are
// logged and reported as UNKNOWN with a 500 status.
func WriteError(c *gin.Context, err error) {
	var domainErr *apperrors.Error
	if !stderrors.As(err, &domainErr) || domainErr == nil {
		log.Printf("internal error %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		domainErr = apperrors.Wrap(apperrors.CodeUnknown, "internal error", err)
	}
	status := domainErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError && domainErr.Cause != nil {
		log.Printf("internal error %s %s: %v", c.Request.Method, c.Request.URL.Path, domainErr.Cause)
	}
	c.JSON(status, ErrorBody{Error: ErrorDetail{
		Code:     string(domainErr.Code),
		Message:  apperrors.UserMessage(Printer(c), domainErr.Code),
		Metadata: domainErr.Metadata,
	}})
}

// BadRequest reports a request that failed to bind or validate.
func BadRequest(c *gin.Context, message string, cause error) {
	WriteError(c, apperrors.Wrap(apperrors.CodeInvalidArgument, message, cause))
}
