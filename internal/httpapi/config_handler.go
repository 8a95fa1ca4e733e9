package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/abdul-hamid-achik/ingestd/internal/config"
)

type configView struct {
	MaxFileSize        int64    `json:"maxFileSize"`
	AllowedTypes       []string `json:"allowedTypes"`
	ChunkSize          int64    `json:"chunkSize"`
	MaxFiles           int      `json:"maxFiles"`
	MaxParallelUploads int      `json:"maxParallelUploads"`
}

type configResponse struct {
	Success bool       `json:"success"`
	Config  configView `json:"config"`
}

// configHandler reports the advisory client configuration. maxFileSize
// reports cfg.MaxFileSize directly, not cfg.MaxParallelUploads — the
// source's mixup (§9 open questions) is fixed here, not reproduced.
func configHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(configResponse{
			Success: true,
			Config: configView{
				MaxFileSize:        cfg.MaxFileSize,
				AllowedTypes:       cfg.AllowedTypes,
				ChunkSize:          cfg.ChunkSize,
				MaxFiles:           cfg.MaxFiles,
				MaxParallelUploads: cfg.MaxParallelUploads,
			},
		})
	}
}
