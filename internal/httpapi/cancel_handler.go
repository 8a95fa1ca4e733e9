package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/abdul-hamid-achik/ingestd/internal/apperror"
	"github.com/abdul-hamid-achik/ingestd/internal/upload"
)

type cancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func cancelHandler(mgr *upload.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uploadID := r.PathValue("uploadId")

		if err := mgr.Cancel(r.Context(), uploadID); err != nil {
			apperror.WriteJSON(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cancelResponse{Success: true, Message: "Upload cancelled"})
	}
}
