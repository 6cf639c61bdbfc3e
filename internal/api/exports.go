package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/httputil"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/queue"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ExportPresigner signs GET URLs for completed export objects.
type ExportPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput,
		opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// URLSigner is the slice of the presigner the handlers use.
type URLSigner interface {
	SignedURL(ctx context.Context, key string) (string, error)
}

// Presigner binds an S3 presign client to the export bucket.
type Presigner struct {
	client ExportPresigner
	bucket string
	ttl    time.Duration
}

// NewPresigner wires the export URL signer.
func NewPresigner(client ExportPresigner, bucket string, ttlSeconds int) *Presigner {
	if ttlSeconds <= 0 {
		ttlSeconds = 900
	}
	return &Presigner{client: client, bucket: bucket, ttl: time.Duration(ttlSeconds) * time.Second}
}

// SignedURL returns a time-limited GET URL for an export object.
func (p *Presigner) SignedURL(ctx context.Context, key string) (string, error) {
	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

type createExportRequest struct {
	Filters map[string]any `json:"filters"`
}

// CreateExport enqueues a standalone CSV export.
//
//	POST /api/exports
func (h *Handlers) CreateExport(w http.ResponseWriter, r *http.Request) {
	var req createExportRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	exportID, err := h.store.CreateExportJob(r.Context(), domain.ExportJob{
		Filters:           req.Filters,
		RequestedByUserID: actorID(r),
	}, requestID(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.exports.Publish(r.Context(), queue.ExportJobMessage{
		ExportID:    exportID,
		RequestedAt: h.now(),
	}); err != nil {
		httputil.DispatchError(w, err)
		return
	}
	httputil.Accepted(w, map[string]any{"exportId": exportID})
}

// GetExport returns an export job, attaching a pre-signed download URL once
// the object exists.
//
//	GET /api/exports/{id}
func (h *Handlers) GetExport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.ValidationError(w, "id must be a UUID")
		return
	}
	job, err := h.store.GetExportJob(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := map[string]any{"export": job}
	if job.S3Key != "" && h.presigner != nil {
		url, err := h.presigner.SignedURL(r.Context(), job.S3Key)
		if err != nil {
			logger.Warn("export_presign_failed", "export_id", id, "error", err.Error())
		} else {
			resp["downloadUrl"] = url
		}
	}
	httputil.OK(w, resp)
}
