package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/abdul-hamid-achik/ingestd/internal/apperror"
	"github.com/abdul-hamid-achik/ingestd/internal/upload"
)

type chunkResponse struct {
	Success        bool    `json:"success"`
	ChunkIndex     int     `json:"chunkIndex"`
	UploadedChunks int     `json:"uploadedChunks,omitempty"`
	TotalChunks    int     `json:"totalChunks,omitempty"`
	Progress       float64 `json:"progress,omitempty"`
	Message        string  `json:"message,omitempty"`
}

const maxChunkFormMemory = 32 << 20

func chunkHandler(mgr *upload.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxChunkFormMemory); err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, apperror.ErrInvalidArgument.Code, "Malformed multipart form", http.StatusBadRequest))
			return
		}

		uploadID := r.FormValue("uploadId")
		index, err := strconv.Atoi(r.FormValue("chunkIndex"))
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, apperror.ErrInvalidArgument.Code, "chunkIndex must be an integer", http.StatusBadRequest))
			return
		}

		file, _, err := r.FormFile("chunk")
		if err != nil {
			apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, apperror.ErrInvalidArgument.Code, "Missing chunk form field", http.StatusBadRequest))
			return
		}
		defer file.Close()

		result, err := mgr.ReceiveChunk(r.Context(), uploadID, index, file)
		if err != nil {
			apperror.WriteJSON(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if result.AlreadyUploaded {
			_ = json.NewEncoder(w).Encode(chunkResponse{
				Success:    true,
				ChunkIndex: index,
				Message:    "Chunk already uploaded",
			})
			return
		}

		_ = json.NewEncoder(w).Encode(chunkResponse{
			Success:        true,
			ChunkIndex:     index,
			UploadedChunks: result.UploadedChunks,
			TotalChunks:    result.TotalChunks,
			Progress:       result.Progress,
		})
	}
}
