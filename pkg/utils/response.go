package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes data as a JSON response with the given status
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// JSONError writes {"error": msg, "code": code}
func JSONError(w http.ResponseWriter, msg string, status int, code string) {
	JSON(w, status, ErrorResponse{Error: msg, Code: code})
}
