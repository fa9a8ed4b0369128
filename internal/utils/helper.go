package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"storefront-be/internal/logger"
)

func StrPtr(s string) *string {
	return &s
}

func PtrString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// WriteJSON writes a success envelope: {"success": true, ...fields}.
func WriteJSON(w http.ResponseWriter, code int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	writeBody(w, code, body)
}

// WriteJSONError writes a failure envelope: {"success": false, "message": message}.
func WriteJSONError(w http.ResponseWriter, message string, code int) {
	writeBody(w, code, map[string]any{
		"success": false,
		"message": message,
	})
}

func writeBody(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.L().Warn("failed to encode response", zap.Error(err))
	}
}
