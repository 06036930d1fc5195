package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/ashureev/mpt-session/internal/catalog"
	"github.com/go-playground/validator/v10"
)

// MaxMessageBytes bounds a single client message.
const MaxMessageBytes = 8 << 10

type chatRequest struct {
	Type       string `json:"type,omitempty" validate:"omitempty,oneof=chat"`
	Message    string `json:"message" validate:"required,maxbytes"`
	SessionID  string `json:"sessionId,omitempty" validate:"omitempty,max=128,printascii"`
	ScenarioID string `json:"scenarioId,omitempty" validate:"omitempty,scenario"`
}

func (r *chatRequest) normalize() {
	r.Message = strings.TrimSpace(r.Message)
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.ScenarioID = strings.TrimSpace(r.ScenarioID)
}

type newSessionRequest struct {
	ScenarioID string `json:"scenarioId,omitempty" validate:"omitempty,scenario"`
}

// FieldError names a failed field by its JSON name and the rule it broke.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

type validationResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details"`
}

func newValidator(cat *catalog.Catalog) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxMessageBytes
	})
	_ = v.RegisterValidation("scenario", func(fl validator.FieldLevel) bool {
		if cat == nil {
			return false
		}
		_, err := cat.Scenario(fl.Field().String())
		return err == nil
	})
	return v
}

func validationDetails(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Rule: "invalid"}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

func writeValidationError(w http.ResponseWriter, details []FieldError) {
	JSON(w, http.StatusBadRequest, validationResponse{Error: "validation_failed", Details: details})
}

// decode reads a bounded JSON body into dst. An empty body is accepted when
// allowEmpty is set. It writes the error response itself and reports whether
// the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF) && allowEmpty:
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, "request_too_large")
		return false
	}
	writeValidationError(w, []FieldError{{Field: "", Rule: "json"}})
	return false
}
