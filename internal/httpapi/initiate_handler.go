package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/abdul-hamid-achik/ingestd/internal/apperror"
	"github.com/abdul-hamid-achik/ingestd/internal/upload"
	"github.com/abdul-hamid-achik/ingestd/internal/web"
)

type initiateRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
	MD5Hash  string `json:"md5Hash"`
}

type initiateResponse struct {
	Success     bool   `json:"success"`
	UploadID    string `json:"uploadId,omitempty"`
	TotalChunks int    `json:"totalChunks,omitempty"`
	ChunkSize   int64  `json:"chunkSize,omitempty"`
	Duplicate   bool   `json:"duplicate,omitempty"`
	StoragePath string `json:"storagePath,omitempty"`
}

func initiateHandler(mgr *upload.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req initiateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, apperror.ErrInvalidArgument.Code, "Malformed JSON request body", http.StatusBadRequest))
			return
		}

		owner := web.Owner(r.Context())
		result, err := mgr.Initiate(r.Context(), req.Filename, req.MimeType, req.FileSize, req.MD5Hash, owner)
		if err != nil {
			apperror.WriteJSON(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if result.Duplicate {
			_ = json.NewEncoder(w).Encode(initiateResponse{
				Success:     true,
				Duplicate:   true,
				StoragePath: result.StoredPath,
			})
			return
		}

		_ = json.NewEncoder(w).Encode(initiateResponse{
			Success:     true,
			UploadID:    result.SessionID,
			TotalChunks: result.TotalChunks,
			ChunkSize:   result.ChunkSize,
		})
	}
}
