// Package problems renders RFC 7807 problem+json error responses.
package problems

import (
	"encoding/json"
	"net/http"
)

// Well-known problem type URLs.
const (
	TypeValidation = "https://lumenboard.app/problems/validation-error"
	TypeNotFound   = "https://lumenboard.app/problems/not-found"
	TypeConflict   = "https://lumenboard.app/problems/conflict"
	TypeUpstream   = "https://lumenboard.app/problems/upstream-error"
	TypeInternal   = "https://lumenboard.app/problems/internal-error"
)

// ProblemDetails is the wire shape for error responses.
type ProblemDetails struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// New builds a ProblemDetails value.
func New(problemType, title string, status int, detail string) ProblemDetails {
	return ProblemDetails{Type: problemType, Title: title, Status: status, Detail: detail}
}

// Write serializes the problem with the application/problem+json media type.
func Write(w http.ResponseWriter, p ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
