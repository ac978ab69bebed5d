package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domainwf.ErrRequisitionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrNoPendingApprovalForApprover):
		return http.StatusForbidden
	case errors.Is(err, domainwf.ErrInvalidStateTransition),
		errors.Is(err, domainwf.ErrVersionConflict),
		errors.Is(err, domainwf.ErrGuardFailed):
		return http.StatusConflict
	case errors.Is(err, domainwf.ErrMissingPrerequisite):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error response. Server errors hide
// their detail.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := Response{Success: false, Error: err.Error()}

	var ve *domainwf.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		if !errors.Is(err, domainwf.ErrConfigurationMissing) {
			resp.Error = "internal error"
		}
	}
	c.JSON(status, resp)
}

// respondBindError reports request binding failures, naming the first
// offending field when the validator produced one.
func (h *Handlers) respondBindError(c *gin.Context, err error) {
	resp := Response{Success: false, Error: "invalid request body"}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		resp.Field = jsonFieldPath(fe.Namespace())
		resp.Error = fmt.Sprintf("%s failed %q validation", resp.Field, fe.Tag())
	}
	c.JSON(http.StatusBadRequest, resp)
}

// jsonFieldPath drops the struct name from a validator namespace such as
// "CreateRequisitionRequest.allocations[0].approver_email".
func jsonFieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// useJSONFieldNames makes the binding validator report json tag names
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
