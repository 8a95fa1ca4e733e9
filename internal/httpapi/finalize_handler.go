package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/abdul-hamid-achik/ingestd/internal/apperror"
	"github.com/abdul-hamid-achik/ingestd/internal/upload"
)

type finalizeRequest struct {
	UploadID string `json:"uploadId"`
}

type finalizeResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	StoragePath string `json:"storagePath,omitempty"`
	UploadID    string `json:"uploadId,omitempty"`
}

func finalizeHandler(mgr *upload.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req finalizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, apperror.ErrInvalidArgument.Code, "Malformed JSON request body", http.StatusBadRequest))
			return
		}

		storedPath, err := mgr.Finalize(r.Context(), req.UploadID)
		if err != nil {
			apperror.WriteJSON(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(finalizeResponse{
			Success:     true,
			Message:     "Upload finalized",
			StoragePath: storedPath,
			UploadID:    req.UploadID,
		})
	}
}
