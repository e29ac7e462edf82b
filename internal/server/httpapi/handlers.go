package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/server/downloads"
	"github.com/dmitrijs2005/eventsnap/internal/server/jobs"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

// maxRequestBody caps the JSON body of the bulk archive endpoint.
const maxRequestBody = 4 << 20

type BulkBuilder interface {
	Build(ctx context.Context, client string, req downloads.BulkRequest) (*downloads.BulkResult, error)
}

type JobService interface {
	Submit(ctx context.Context, eventID string) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	Sweep(ctx context.Context) (jobs.SweepResult, error)
}

type MediaResolver interface {
	Resolve(ctx context.Context, client, eventID, mediaID string) (*downloads.Resolution, error)
}

type handler struct {
	bulk     BulkBuilder
	jobs     JobService
	resolver MediaResolver
	logger   logging.Logger
}

type signedLink struct {
	URL           string    `json:"url"`
	IsWatermarked bool      `json:"isWatermarked"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

func (h *handler) createArchive(w http.ResponseWriter, r *http.Request) {
	var req downloads.BulkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, h.logger, fmt.Errorf("%w: request body over %d bytes", common.ErrValidation, tooLarge.Limit))
			return
		}
		writeError(r.Context(), w, h.logger, fmt.Errorf("%w: malformed request body: %v", common.ErrValidation, err))
		return
	}

	res, err := h.bulk.Build(r.Context(), ClientFrom(r.Context()), req)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "application/zip")
	hdr.Set("Content-Disposition", attachment(res.FileName))
	hdr.Set("Content-Length", strconv.Itoa(len(res.Data)))
	hdr.Set("X-Archive-Included-Count", strconv.Itoa(res.Included))
	hdr.Set("X-Archive-Failed-Count", strconv.Itoa(res.Failed))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (h *handler) createJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Submit(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/v1/download-jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handler) downloadMedia(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolver.Resolve(r.Context(), ClientFrom(r.Context()),
		chi.URLParam(r, "eventID"), chi.URLParam(r, "photoID"))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	if res.Mode == downloads.ModeSignedURL {
		writeJSON(w, http.StatusOK, signedLink{URL: res.URL, IsWatermarked: false, ExpiresAt: res.ExpiresAt})
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", res.ContentType)
	hdr.Set("Content-Length", strconv.Itoa(len(res.Data)))
	hdr.Set("Content-Disposition", attachment(res.FileName))
	hdr.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (h *handler) sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.jobs.Sweep(r.Context())
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
