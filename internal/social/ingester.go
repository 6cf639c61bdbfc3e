package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/store"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

const socialTitleMax = 140

// S3API is the slice of the S3 client the ingester touches.
type S3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// SocialStore is the store slice the ingester drives.
type SocialStore interface {
	TryMarkSocialObject(ctx context.Context, mark domain.SocialObjectMark) (bool, error)
	UpdateSocialObjectRowCount(ctx context.Context, bucket, key, etag string, rowCount int) error
	UpsertContentItem(ctx context.Context, item domain.ContentItem) (uuid.UUID, error)
	UpsertSocialAggregate(ctx context.Context, agg domain.SocialAggregate) error
	InsertReconciliation(ctx context.Context, snap domain.ReconciliationSnapshot, requestID string) (uuid.UUID, error)
}

// SpikeHook fires after aggregation when a channel's daily post volume
// crosses the spike threshold. The incident evaluator owns incident creation;
// the hook only signals.
type SpikeHook func(ctx context.Context, channel string, agg domain.SocialAggregate)

// Ingester walks the social bucket's channel prefixes and turns unprocessed
// CSV dumps into content items and aggregates.
type Ingester struct {
	client         S3API
	store          SocialStore
	bucket         string
	channels       []string
	spikeThreshold int
	onSpike        SpikeHook
	now            func() time.Time
}

// NewIngester wires the social ingester. A spikeThreshold of zero disables
// the hook.
func NewIngester(client S3API, st SocialStore, bucket string, channels []string,
	spikeThreshold int, onSpike SpikeHook) *Ingester {

	return &Ingester{
		client:         client,
		store:          st,
		bucket:         bucket,
		channels:       channels,
		spikeThreshold: spikeThreshold,
		onSpike:        onSpike,
		now:            time.Now,
	}
}

// IngestAll runs one pass over every configured channel. A failing channel is
// logged and does not abort the others.
func (g *Ingester) IngestAll(ctx context.Context, requestID string) {
	if g.bucket == "" {
		logger.Warn("social_ingest_skipped", "reason", "bucket_not_configured")
		return
	}
	for _, channel := range g.channels {
		if err := g.IngestChannel(ctx, channel, requestID); err != nil {
			logger.Error("social_channel_failed", "channel", channel, "error", err.Error())
		}
	}
}

// IngestChannel processes every unclaimed CSV object under the channel
// prefix, then persists the aggregates and the reconciliation snapshot.
func (g *Ingester) IngestChannel(ctx context.Context, channel, requestID string) error {
	keys, err := g.listObjects(ctx, "social/"+channel+"/")
	if err != nil {
		return err
	}

	windows := make(map[time.Time]*domain.SocialAggregate)
	snap := domain.ReconciliationSnapshot{Channel: channel, Status: domain.ReconciliationOK}

	for _, obj := range keys {
		snap.ObjectsScanned++
		claimed, err := g.store.TryMarkSocialObject(ctx, domain.SocialObjectMark{
			Bucket:       g.bucket,
			Key:          obj.key,
			ETag:         obj.etag,
			LastModified: obj.lastModified,
		})
		if err != nil {
			return err
		}
		if !claimed {
			snap.ObjectsSkipped++
			continue
		}

		parsed, persisted, err := g.processObject(ctx, channel, obj, windows)
		snap.RowsParsed += parsed
		snap.RowsPersisted += persisted
		if err != nil {
			// The mark stays: a truncated object is not retried blind, it
			// surfaces through the warning reconciliation instead.
			logger.Warn("social_object_partial", "channel", channel, "key", obj.key, "error", err.Error())
			snap.Status = domain.ReconciliationWarning
			snap.Detail = appendDetail(snap.Detail, fmt.Sprintf("%s: %s", obj.key, err.Error()))
		}
		if err := g.store.UpdateSocialObjectRowCount(ctx, g.bucket, obj.key, obj.etag, parsed); err != nil {
			logger.Warn("social_row_count_update_failed", "key", obj.key, "error", err.Error())
		}
	}

	for _, agg := range windows {
		if err := g.store.UpsertSocialAggregate(ctx, *agg); err != nil {
			return err
		}
		if g.spikeThreshold > 0 && agg.PostCount >= g.spikeThreshold && g.onSpike != nil {
			g.onSpike(ctx, channel, *agg)
		}
	}

	if snap.RowsPersisted != snap.RowsParsed && snap.Status == domain.ReconciliationOK {
		snap.Status = domain.ReconciliationWarning
		snap.Detail = appendDetail(snap.Detail,
			fmt.Sprintf("persisted %d of %d parsed rows", snap.RowsPersisted, snap.RowsParsed))
	}
	if _, err := g.store.InsertReconciliation(ctx, snap, requestID); err != nil {
		return err
	}
	logger.Info("social_channel_ingested", "channel", channel,
		"objects_scanned", snap.ObjectsScanned, "objects_skipped", snap.ObjectsSkipped,
		"rows_parsed", snap.RowsParsed, "rows_persisted", snap.RowsPersisted,
		"status", snap.Status)
	return nil
}

type bucketObject struct {
	key          string
	etag         string
	lastModified time.Time
}

func (g *Ingester) listObjects(ctx context.Context, prefix string) ([]bucketObject, error) {
	var out []bucketObject
	var token *string
	for {
		resp, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(g.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
				logger.Warn("social_bucket_missing", "bucket", g.bucket)
				return nil, nil
			}
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range resp.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(strings.ToLower(key), ".csv") {
				continue
			}
			out = append(out, bucketObject{
				key:          key,
				etag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				lastModified: aws.ToTime(obj.LastModified),
			})
		}
		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}
	return out, nil
}

func (g *Ingester) processObject(ctx context.Context, channel string, obj bucketObject,
	windows map[time.Time]*domain.SocialAggregate) (int, int, error) {

	resp, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(obj.key),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("get %s: %w", obj.key, err)
	}
	defer resp.Body.Close()

	posts, parsed, parseErr := ParseChannelCSV(channel, resp.Body)

	persisted := 0
	for _, post := range posts {
		if _, err := g.store.UpsertContentItem(ctx, postToContentItem(post, obj.key)); err != nil {
			logger.Warn("social_post_persist_failed", "channel", channel,
				"external_id", post.ExternalID, "error", err.Error())
			continue
		}
		persisted++
		addToWindow(windows, post, g.now())
	}
	return parsed, persisted, parseErr
}

func addToWindow(windows map[time.Time]*domain.SocialAggregate, post domain.SocialPost, now time.Time) {
	at := now
	if post.PostedAt != nil {
		at = *post.PostedAt
	}
	start, end := store.SocialWindowBounds(at)
	agg, ok := windows[start]
	if !ok {
		agg = &domain.SocialAggregate{Channel: post.Channel, WindowStart: start, WindowEnd: end}
		windows[start] = agg
	}
	agg.PostCount++
	agg.LikeCount += post.Likes
	agg.ShareCount += post.Shares
	agg.CommentCount += post.Comments
}

// postToContentItem projects a post onto the shared content table. Posts
// without a permalink get a synthetic canonical URL so the unique key holds.
func postToContentItem(post domain.SocialPost, s3Key string) domain.ContentItem {
	canonical := post.PermalinkURL
	if canonical == "" {
		canonical = fmt.Sprintf("social://%s/%s", post.Channel, post.ExternalID)
	}
	title := post.Text
	if len([]rune(title)) > socialTitleMax {
		title = string([]rune(title)[:socialTitleMax])
	}
	return domain.ContentItem{
		SourceType:      domain.SourceSocial,
		Provider:        post.Channel,
		SourceName:      post.Author,
		SourceID:        post.ExternalID,
		CanonicalURL:    canonical,
		Title:           title,
		Content:         post.Text,
		PublishedAt:     post.PostedAt,
		RawPayloadS3Key: s3Key,
		Metadata: map[string]any{
			"likes":    post.Likes,
			"shares":   post.Shares,
			"comments": post.Comments,
		},
	}
}

func appendDetail(existing, add string) string {
	if existing == "" {
		return add
	}
	return existing + "; " + add
}
