package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilgisen/newsbyte/internal/models"
	"github.com/bilgisen/newsbyte/internal/storage"
)

const transcriptText = "The election commission announced on Tuesday that polling in the northern state will be held in three phases, " +
	"with counting scheduled for the first week of December. Opposition parties welcomed the schedule but raised concerns about security."

func TestGeminiClient_Summarize(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gemini-test:generateContent" || r.URL.Query().Get("key") != "secret" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Polling will be held in three phases."}]}}]}`))
	}))
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{APIKey: "secret", Model: "gemini-test", BaseURL: srv.URL, Timeout: 5 * time.Second})
	summary, err := client.Summarize(context.Background(), transcriptText)
	require.NoError(t, err)
	assert.Equal(t, "Polling will be held in three phases.", summary)

	require.Len(t, got.Contents, 1)
	prompt := got.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "election commission")
	assert.Contains(t, prompt, "Between 30 and 80 words")
}

func TestGeminiClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	client := NewGeminiClient(GeminiConfig{APIKey: "bad", Model: "m", BaseURL: srv.URL})
	_, err := client.Summarize(context.Background(), transcriptText)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestTruncateInput(t *testing.T) {
	long := strings.Repeat("A sentence of filler text. ", 40)
	cut := TruncateInput(long, 600)
	assert.LessOrEqual(t, len(cut), 600)
	assert.True(t, strings.HasSuffix(cut, "."), "should cut at a sentence end: %q", cut[len(cut)-20:])

	noStops := strings.Repeat("word ", 200)
	cut = TruncateInput(noStops, 100)
	assert.True(t, strings.HasSuffix(cut, "..."))

	assert.Equal(t, "short", TruncateInput("short", 100))

	hindi := strings.Repeat("समाचार ", 50)
	cut = TruncateInput(hindi, 101)
	assert.True(t, strings.HasSuffix(cut, "..."))
	assert.NotContains(t, cut, "�")
}

func TestPostProcessor_ProcessSummary(t *testing.T) {
	p := NewPostProcessor()

	tests := []struct {
		name    string
		summary string
		want    string
		wantErr bool
	}{
		{"clean", "Polling will be held in three phases.", "Polling will be held in three phases.", false},
		{"label and whitespace", "**Summary:**\n  Polling   will be held\tin three phases.", "Polling will be held in three phases.", false},
		{"fenced", "```\nPolling will be held in three phases.\n```", "Polling will be held in three phases.", false},
		{"markup", "<p>Polling will be held</p><script>alert(1)</script> in three phases.", "Polling will be held in three phases.", false},
		{"empty", "   ", "", true},
		{"too short", "Polls.", "", true},
		{"longer than source", transcriptText + " And more.", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ProcessSummary(tt.summary, transcriptText)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSummary)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeSummarizer struct {
	out   string
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	f.calls++
	return f.out, f.err
}

func newServiceStore(t *testing.T, transcript string) storage.Store {
	t.Helper()
	store := storage.NewMemoryStore(nil)
	require.NoError(t, store.Upsert(context.Background(), &models.NewsItem{
		VideoID:    "aaaaaaaaaaa",
		Title:      "Election dates announced",
		Transcript: transcript,
		Genre:      models.GenrePolitics,
	}))
	return store
}

func TestSummaryService_GenerateAndReuse(t *testing.T) {
	store := newServiceStore(t, transcriptText)
	fake := &fakeSummarizer{out: "Polling will be held in three phases in December."}
	svc := NewSummaryService(store, fake)
	ctx := context.Background()

	item, generated, err := svc.Summarize(ctx, "aaaaaaaaaaa", false)
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, models.SummaryCompleted, item.SummaryStatus)
	require.NotNil(t, item.SummaryCreatedAt)

	stored, err := svc.Get(ctx, "aaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "Polling will be held in three phases in December.", stored.Summary)
	assert.Equal(t, transcriptText, stored.Transcript, "the rest of the record is kept")

	_, generated, err = svc.Summarize(ctx, "aaaaaaaaaaa", false)
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, 1, fake.calls)

	fake.out = "Opposition parties raised security concerns about the polls."
	item, generated, err = svc.Summarize(ctx, "aaaaaaaaaaa", true)
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, models.SummaryRegenerated, item.SummaryStatus)
	assert.Equal(t, 2, fake.calls)
}

func TestSummaryService_Errors(t *testing.T) {
	ctx := context.Background()

	svc := NewSummaryService(newServiceStore(t, transcriptText), &fakeSummarizer{})
	_, _, err := svc.Summarize(ctx, "zzzzzzzzzzz", false)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	svc = NewSummaryService(newServiceStore(t, "too short to summarize"), &fakeSummarizer{out: "x"})
	_, _, err = svc.Summarize(ctx, "aaaaaaaaaaa", false)
	assert.ErrorIs(t, err, ErrTranscriptTooShort)

	svc = NewSummaryService(newServiceStore(t, transcriptText), nil)
	_, _, err = svc.Summarize(ctx, "aaaaaaaaaaa", false)
	assert.ErrorIs(t, err, ErrUnavailable)

	failing := &fakeSummarizer{err: errors.New("model overloaded")}
	store := newServiceStore(t, transcriptText)
	svc = NewSummaryService(store, failing)
	_, _, err = svc.Summarize(ctx, "aaaaaaaaaaa", false)
	assert.Error(t, err)

	item, err := store.Get(ctx, models.VideoURL("aaaaaaaaaaa"))
	require.NoError(t, err)
	assert.False(t, item.HasSummary(), "failed summarization must not touch the record")

	svc = NewSummaryService(newServiceStore(t, transcriptText), &fakeSummarizer{out: ""})
	_, _, err = svc.Summarize(ctx, "aaaaaaaaaaa", false)
	assert.ErrorIs(t, err, ErrInvalidSummary)
}

func TestSummaryService_Batch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	for _, it := range []models.NewsItem{
		{VideoID: "aaaaaaaaaaa", Transcript: transcriptText, ChannelID: "UC1"},
		{VideoID: "bbbbbbbbbbb", Transcript: transcriptText, ChannelID: "UC1"},
		{VideoID: "ccccccccccc", Transcript: transcriptText, ChannelID: "UC2"},
		{VideoID: "ddddddddddd", Transcript: "too short", ChannelID: "UC1"},
	} {
		require.NoError(t, store.Upsert(ctx, &it))
	}

	_, err := NewSummaryService(store, nil).SummarizeBatch(ctx, BatchRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)

	fake := &fakeSummarizer{out: "Polling will be held in three phases in December."}
	svc := NewSummaryService(store, fake)

	res, err := svc.SummarizeBatch(ctx, BatchRequest{ChannelID: "UC1", SkipExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Skipped)
	for _, entry := range res.Items {
		if entry.VideoID == "ddddddddddd" {
			assert.Contains(t, entry.Error, "too short")
			continue
		}
		assert.Equal(t, models.SummaryCompleted, entry.Status)
	}

	res, err = svc.SummarizeBatch(ctx, BatchRequest{ChannelID: "UC1", SkipExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, fake.calls, "existing summaries are not regenerated")

	res, err = svc.SummarizeBatch(ctx, BatchRequest{ChannelID: "UC1", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Items, 1)

	item, err := svc.Get(ctx, "ccccccccccc")
	require.NoError(t, err)
	assert.False(t, item.HasSummary(), "other channels are untouched")

	cleared, err := svc.ClearSummaries(ctx, "UC1")
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	cleared, err = svc.ClearSummaries(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, cleared)

	all, err := store.Query(ctx, storage.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 4, "records are kept")
	for _, it := range all {
		assert.False(t, it.HasSummary(), it.VideoID)
		assert.Nil(t, it.SummaryCreatedAt, it.VideoID)
	}
}
