package apperror

import (
	"encoding/json"
	"net/http"

	"github.com/abdul-hamid-achik/ingestd/internal/logger"
)

// ErrorResponse is the error envelope of EXTERNAL INTERFACES:
// {success:false, error:"<one-line>", errors?:[<detail>, ...]}.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Errors  []string `json:"errors,omitempty"`
}

// WriteJSON writes the error envelope and logs the outcome. Internal causes
// are logged but never serialised to the client.
func WriteJSON(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	var appErr *Error
	if e, ok := err.(*Error); ok {
		appErr = e
	} else {
		appErr = Wrap(err, ErrInternal)
	}

	if appErr.Internal != nil {
		log.Error("request error",
			"code", appErr.Code,
			"internal_error", appErr.Internal.Error(),
		)
	} else {
		log.Warn("request error", "code", appErr.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Success: false,
		Error:   appErr.Message,
		Errors:  appErr.Details,
	})
}
