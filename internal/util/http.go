package util

import (
	"encoding/json"
	"net/http"
)

// APIError is the envelope for every non-2xx response.
type APIError struct {
	Code      string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Legal     any    `json:"legal,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, msg, reqID string) {
	WriteJSON(w, status, APIError{Code: code, Message: msg, RequestID: reqID})
}

// WriteLegalError is WriteError with the blocking legal decision attached.
func WriteLegalError(w http.ResponseWriter, status int, code, msg, reqID string, legal any) {
	WriteJSON(w, status, APIError{Code: code, Message: msg, RequestID: reqID, Legal: legal})
}
