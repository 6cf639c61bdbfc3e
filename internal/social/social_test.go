package social

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannelCSV(t *testing.T) {
	body := strings.Join([]string{
		"id,author,text,permalink,posted_at,likes,shares,comments",
		`p1,@user1,"Claro sin señal otra vez",https://x.com/user1/p1,2026-08-20T10:00:00Z,120,30,14`,
		`p2,@user2,"Buen servicio hoy",,2026-08-20 15:30:00,5,0,1`,
		`,@ghost,"sin id",,,1,0,0`,
		`p3,@user3,,,,0,0,0`,
	}, "\n")

	posts, parsed, err := ParseChannelCSV("x", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 4, parsed)
	require.Len(t, posts, 2)

	assert.Equal(t, "p1", posts[0].ExternalID)
	assert.Equal(t, "@user1", posts[0].Author)
	assert.Equal(t, "https://x.com/user1/p1", posts[0].PermalinkURL)
	assert.Equal(t, 120, posts[0].Likes)
	assert.Equal(t, 30, posts[0].Shares)
	require.NotNil(t, posts[0].PostedAt)
	assert.Equal(t, time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC), *posts[0].PostedAt)

	// Space-separated timestamps parse too.
	require.NotNil(t, posts[1].PostedAt)
	assert.Equal(t, 15, posts[1].PostedAt.Hour())
}

func TestParseChannelCSVAlternateHeaders(t *testing.T) {
	body := "post_id,username,message,url,created_at,like_count,retweets,replies\n" +
		"a1,@u,hola claro,https://x.com/u/a1,2026-08-21,10,2,3\n"
	posts, parsed, err := ParseChannelCSV("x", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 1, parsed)
	require.Len(t, posts, 1)
	assert.Equal(t, "a1", posts[0].ExternalID)
	assert.Equal(t, 2, posts[0].Shares)
}

func TestParseChannelCSVMissingIDColumn(t *testing.T) {
	_, _, err := ParseChannelCSV("facebook", strings.NewReader("author,text\n@u,hola\n"))
	assert.ErrorContains(t, err, "missing id column")
}

func TestParseChannelCSVEmptyObject(t *testing.T) {
	posts, parsed, err := ParseChannelCSV("facebook", strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, parsed)
	assert.Empty(t, posts)
}

type fakeS3 struct {
	objects map[string]string // key -> csv body
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{
				Key:          aws.String(key),
				ETag:         aws.String(`"etag-` + key + `"`),
				LastModified: aws.Time(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)),
			})
		}
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

type fakeSocialStore struct {
	marks       map[string]bool
	items       []domain.ContentItem
	aggregates  []domain.SocialAggregate
	snapshots   []domain.ReconciliationSnapshot
	upsertFails int
}

func newFakeSocialStore() *fakeSocialStore {
	return &fakeSocialStore{marks: make(map[string]bool)}
}

func (f *fakeSocialStore) TryMarkSocialObject(_ context.Context, mark domain.SocialObjectMark) (bool, error) {
	key := mark.Bucket + "|" + mark.Key + "|" + mark.ETag
	if f.marks[key] {
		return false, nil
	}
	f.marks[key] = true
	return true, nil
}

func (f *fakeSocialStore) UpdateSocialObjectRowCount(context.Context, string, string, string, int) error {
	return nil
}

func (f *fakeSocialStore) UpsertContentItem(_ context.Context, item domain.ContentItem) (uuid.UUID, error) {
	if f.upsertFails > 0 {
		f.upsertFails--
		return uuid.Nil, io.ErrUnexpectedEOF
	}
	f.items = append(f.items, item)
	return uuid.New(), nil
}

func (f *fakeSocialStore) UpsertSocialAggregate(_ context.Context, agg domain.SocialAggregate) error {
	f.aggregates = append(f.aggregates, agg)
	return nil
}

func (f *fakeSocialStore) InsertReconciliation(_ context.Context, snap domain.ReconciliationSnapshot, _ string) (uuid.UUID, error) {
	f.snapshots = append(f.snapshots, snap)
	return uuid.New(), nil
}

const xDump = "id,author,text,permalink,posted_at,likes,shares,comments\n" +
	"p1,@u1,caida masiva claro,https://x.com/u1/p1,2026-08-20T10:00:00Z,100,20,5\n" +
	"p2,@u2,sin servicio,https://x.com/u2/p2,2026-08-20T11:00:00Z,50,10,2\n" +
	"p3,@u3,volvio la señal,https://x.com/u3/p3,2026-08-21T09:00:00Z,10,1,0\n"

func TestIngestChannelPersistsAndAggregates(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"social/x/2026-08-20.csv": xDump,
		"social/x/readme.txt":     "not a csv",
	}}
	st := newFakeSocialStore()
	ing := NewIngester(client, st, "social-bucket", []string{"x"}, 0, nil)

	require.NoError(t, ing.IngestChannel(context.Background(), "x", "req-1"))

	require.Len(t, st.items, 3)
	assert.Equal(t, domain.SourceSocial, st.items[0].SourceType)
	assert.Equal(t, "x", st.items[0].Provider)
	assert.Equal(t, "social/x/2026-08-20.csv", st.items[0].RawPayloadS3Key)

	// Two posts on the 20th, one on the 21st: two daily windows.
	require.Len(t, st.aggregates, 2)
	byDay := map[int]domain.SocialAggregate{}
	for _, a := range st.aggregates {
		byDay[a.WindowStart.Day()] = a
	}
	assert.Equal(t, 2, byDay[20].PostCount)
	assert.Equal(t, 150, byDay[20].LikeCount)
	assert.Equal(t, 1, byDay[21].PostCount)

	require.Len(t, st.snapshots, 1)
	snap := st.snapshots[0]
	assert.Equal(t, domain.ReconciliationOK, snap.Status)
	assert.Equal(t, 3, snap.RowsParsed)
	assert.Equal(t, 3, snap.RowsPersisted)
	assert.Equal(t, 1, snap.ObjectsScanned)
}

func TestIngestChannelSkipsMarkedObjects(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"social/x/2026-08-20.csv": xDump}}
	st := newFakeSocialStore()
	ing := NewIngester(client, st, "social-bucket", []string{"x"}, 0, nil)

	require.NoError(t, ing.IngestChannel(context.Background(), "x", "req-1"))
	require.NoError(t, ing.IngestChannel(context.Background(), "x", "req-2"))

	assert.Len(t, st.items, 3)
	require.Len(t, st.snapshots, 2)
	assert.Equal(t, 1, st.snapshots[1].ObjectsSkipped)
	assert.Zero(t, st.snapshots[1].RowsParsed)
}

func TestIngestChannelDriftYieldsWarning(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"social/x/2026-08-20.csv": xDump}}
	st := newFakeSocialStore()
	st.upsertFails = 1
	ing := NewIngester(client, st, "social-bucket", []string{"x"}, 0, nil)

	require.NoError(t, ing.IngestChannel(context.Background(), "x", "req-1"))

	require.Len(t, st.snapshots, 1)
	assert.Equal(t, domain.ReconciliationWarning, st.snapshots[0].Status)
	assert.Equal(t, 3, st.snapshots[0].RowsParsed)
	assert.Equal(t, 2, st.snapshots[0].RowsPersisted)
	assert.Contains(t, st.snapshots[0].Detail, "persisted 2 of 3")
}

func TestIngestChannelSpikeHook(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"social/x/2026-08-20.csv": xDump}}
	st := newFakeSocialStore()
	var spiked []string
	hook := func(_ context.Context, channel string, agg domain.SocialAggregate) {
		spiked = append(spiked, channel)
	}
	ing := NewIngester(client, st, "social-bucket", []string{"x"}, 2, hook)

	require.NoError(t, ing.IngestChannel(context.Background(), "x", "req-1"))

	// Only the window with two posts crosses the threshold.
	assert.Equal(t, []string{"x"}, spiked)
}

func TestPostToContentItemSyntheticURL(t *testing.T) {
	item := postToContentItem(domain.SocialPost{
		Channel: "tiktok", ExternalID: "v99", Text: strings.Repeat("ñ", 200),
	}, "social/tiktok/d.csv")
	assert.Equal(t, "social://tiktok/v99", item.CanonicalURL)
	assert.Equal(t, 140, len([]rune(item.Title)))
	assert.Equal(t, strings.Repeat("ñ", 200), item.Content)
}
