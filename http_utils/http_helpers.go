package http_utils

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// SendResponse writes a JSON payload with the given status code.
func SendResponse(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

// ValidateStruct runs the validator over s and returns a response listing
// every failed field. The zero value means validation passed.
func ValidateStruct(v *validator.Validate, s interface{}) ValidationErrorResponse {
	if err := v.Struct(s); err != nil {
		return ValidationErrorResponse{
			BaseResponse: BaseResponse{
				Success: false,
				Message: "invalid body, validation failed",
			},
			Errors: lo.Map(err.(validator.ValidationErrors), func(item validator.FieldError, index int) string {
				return item.Error()
			}),
		}
	}

	return ValidationErrorResponse{}
}
