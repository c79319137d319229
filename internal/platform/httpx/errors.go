package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/mediaplan/mediaplan/internal/shared"
)

type errorClass struct {
	target error
	status int
	title  string
	public bool
}

// Order matters: the first class the error wraps wins.
var errorClasses = []errorClass{
	{shared.ErrInvalidInput, http.StatusBadRequest, "Invalid Plan Input", true},
	{shared.ErrNotFound, http.StatusNotFound, "Plan Resource Not Found", true},
	{shared.ErrPartialConsistency, http.StatusConflict, "Plan Partially Updated", true},
	{shared.ErrStorage, http.StatusBadGateway, "Plan Storage Unavailable", true},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "Request Timed Out", false},
}

// StatusFor returns the HTTP status RespondError would use for err.
func StatusFor(err error) int {
	if class, ok := classify(err); ok {
		return class.status
	}
	return http.StatusInternalServerError
}

// RespondError renders err as a problem document. Unclassified errors never
// leak their message.
func RespondError(w http.ResponseWriter, err error) {
	class, ok := classify(err)
	if !ok {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	detail := ""
	if class.public {
		detail = err.Error()
	}
	Problem(w, class.status, class.title, detail)
}

func classify(err error) (errorClass, bool) {
	if err == nil {
		return errorClass{}, false
	}
	for _, class := range errorClasses {
		if errors.Is(err, class.target) {
			return class, true
		}
	}
	return errorClass{}, false
}
