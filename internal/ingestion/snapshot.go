package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3API is the slice of the S3 client the snapshot writer touches.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SnapshotWriter persists the raw provider payload for one (run, term) under
// a date-partitioned key.
type SnapshotWriter struct {
	client S3API
	bucket string
}

// NewSnapshotWriter builds a writer for the raw bucket. An empty bucket name
// disables snapshots rather than failing the run.
func NewSnapshotWriter(client S3API, bucket string) *SnapshotWriter {
	return &SnapshotWriter{client: client, bucket: bucket}
}

// SnapshotKey builds the partitioned object key for a run/term payload.
func SnapshotKey(date time.Time, runID uuid.UUID, trigger, term string) string {
	return fmt.Sprintf("ingestion/date=%s/run=%s/trigger=%s/term=%s/payload.json",
		date.UTC().Format("2006-01-02"), runID, trigger, slug(term))
}

// Write marshals payload and puts it at the snapshot key. Returns the key,
// or "" when snapshots are disabled.
func (w *SnapshotWriter) Write(ctx context.Context, date time.Time, runID uuid.UUID,
	trigger, term string, payload any) (string, error) {

	if w == nil || w.bucket == "" {
		return "", nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	key := SnapshotKey(date, runID, trigger, term)
	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put snapshot %s: %w", key, err)
	}
	return key, nil
}

// slug lowers a term and folds non-alphanumerics to single dashes.
func slug(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "term"
	}
	return out
}
