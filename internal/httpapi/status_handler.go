package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/ingestd/internal/apperror"
	"github.com/abdul-hamid-achik/ingestd/internal/sessionstore"
	"github.com/abdul-hamid-achik/ingestd/internal/upload"
)

type sessionView struct {
	UploadID       string     `json:"uploadId"`
	Filename       string     `json:"filename"`
	MediaType      string     `json:"mediaType"`
	Size           int64      `json:"size"`
	ChunkSize      int64      `json:"chunkSize"`
	TotalChunks    int        `json:"totalChunks"`
	UploadedChunks int        `json:"uploadedChunks"`
	Progress       float64    `json:"progress"`
	Status         string     `json:"status"`
	StoragePath    string     `json:"storagePath,omitempty"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastChunkAt    *time.Time `json:"lastChunkAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func toSessionView(sess sessionstore.Session) sessionView {
	return sessionView{
		UploadID:       sess.ID,
		Filename:       sess.Filename,
		MediaType:      sess.MediaType,
		Size:           sess.Size,
		ChunkSize:      sess.ChunkSize,
		TotalChunks:    sess.TotalChunks,
		UploadedChunks: sess.UploadedChunks,
		Progress:       sess.Progress(),
		Status:         sess.State.String(),
		StoragePath:    sess.StoredPath,
		ErrorMessage:   sess.ErrorMessage,
		CreatedAt:      sess.CreatedAt,
		LastChunkAt:    sess.LastChunkAt,
		CompletedAt:    sess.CompletedAt,
	}
}

type statusResponse struct {
	Success bool        `json:"success"`
	Data    sessionView `json:"data"`
}

func statusHandler(mgr *upload.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uploadID := r.PathValue("uploadId")

		sess, err := mgr.GetStatus(r.Context(), uploadID)
		if err != nil {
			apperror.WriteJSON(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusResponse{Success: true, Data: toSessionView(sess)})
	}
}
