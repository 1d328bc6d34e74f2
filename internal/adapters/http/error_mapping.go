package httpadapter

import (
	"net/http"

	"github.com/kirillkom/coaching-kb/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrServiceUnavailable), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage keeps internal details out of 5xx responses.
func errorMessage(status int, err error) string {
	switch {
	case domain.IsKind(err, domain.ErrServiceUnavailable):
		return domain.MessageServiceUnavailable
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		return "internal error"
	default:
		return err.Error()
	}
}
