package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/warp/payout-engine/generic"
)

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind decodes the body into dst and validates it. An empty body decodes
// to the zero value. On failure the error response is already written and
// bind returns false.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body", nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
			return false
		}
		details := make([]ValidationDetail, 0, len(verrs))
		for _, e := range verrs {
			details = append(details, ValidationDetail{Field: e.Field(), Message: getValidationMessage(e)})
		}
		writeError(w, http.StatusBadRequest, "validation_failed", "Request validation failed", details)
		return false
	}
	return true
}

// fieldError turns a domain ValidationError into a single detail.
func fieldError(err error) []ValidationDetail {
	var ve *generic.ValidationError
	if errors.As(err, &ve) {
		return []ValidationDetail{{Field: ve.Field, Message: ve.Reason}}
	}
	return nil
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	case "numeric":
		return "Must be a decimal number"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "datetime":
		switch e.Param() {
		case generic.DateLayout:
			return "Must be a date (YYYY-MM-DD)"
		case generic.MonthLayout:
			return "Must be a month (YYYY-MM)"
		}
		return "Must match " + e.Param()
	default:
		return "Invalid value"
	}
}
