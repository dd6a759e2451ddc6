package httpadapter

import (
	"net/http"

	"github.com/kirillkom/campus-notice-rag/internal/core/domain"
)

const (
	codeInvalidJSON = "invalid_json"
	codeRateLimited = "rate_limited"
	codeOverloaded  = "overloaded"
)

var statusByKind = map[string]int{
	domain.KindInvalidInput: http.StatusBadRequest,
	domain.KindNotFound:     http.StatusNotFound,
	domain.KindTemporary:    http.StatusServiceUnavailable,
	domain.KindUnavailable:  http.StatusServiceUnavailable,
}

func mapErrorToHTTPStatus(err error) int {
	if status, ok := statusByKind[domain.Kind(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), errorBody{Error: err.Error(), Code: domain.Kind(err)})
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}
