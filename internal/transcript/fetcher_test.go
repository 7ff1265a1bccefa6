package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bilgisen/newsbyte/internal/filter"
	"github.com/bilgisen/newsbyte/internal/youtube"
)

const goodText = "This is a real news report about an election involving the parliament and the prime minister today"

func segs(text string) []youtube.Segment {
	var out []youtube.Segment
	for i, line := range strings.Split(text, "|") {
		out = append(out, youtube.Segment{Text: line, Start: float64(i)})
	}
	return out
}

type fakeProvider struct {
	byLang     map[string][]youtube.Segment
	langErr    map[string]error
	tracks     []youtube.Track
	tracksErr  error
	translated map[string][]youtube.Segment

	calls []string
}

func (p *fakeProvider) Fetch(ctx context.Context, videoID, language string) ([]youtube.Segment, error) {
	p.calls = append(p.calls, "fetch:"+language)
	if err := p.langErr[language]; err != nil {
		return nil, err
	}
	if s, ok := p.byLang[language]; ok {
		return s, nil
	}
	return nil, youtube.ErrNotFound
}

func (p *fakeProvider) ListTracks(ctx context.Context, videoID string) ([]youtube.Track, error) {
	p.calls = append(p.calls, "list")
	if p.tracksErr != nil {
		return nil, p.tracksErr
	}
	return p.tracks, nil
}

func (p *fakeProvider) FetchTrack(ctx context.Context, track youtube.Track) ([]youtube.Segment, error) {
	return p.Fetch(ctx, track.VideoID, track.LanguageCode)
}

func (p *fakeProvider) Translate(ctx context.Context, track youtube.Track, target string) ([]youtube.Segment, error) {
	p.calls = append(p.calls, "translate:"+track.LanguageCode)
	if s, ok := p.translated[track.LanguageCode]; ok {
		return s, nil
	}
	return nil, youtube.ErrNotFound
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestFetcher(p Provider) (*Fetcher, *sleepRecorder) {
	cfg := DefaultConfig()
	cfg.MinInterval = 0
	rec := &sleepRecorder{}
	return NewFetcher(p, filter.New(), cfg).WithSleep(rec.sleep), rec
}

func TestFetcher_PreferredLanguage(t *testing.T) {
	p := &fakeProvider{byLang: map[string][]youtube.Segment{"en": segs(goodText)}}
	f, _ := newTestFetcher(p)

	res := f.Fetch(context.Background(), "vid")
	if !res.OK() {
		t.Fatalf("expected success, got %s", res.Outcome)
	}
	if res.Language != "en" || res.Text != goodText {
		t.Errorf("unexpected result %+v", res)
	}
	if len(p.calls) != 1 {
		t.Errorf("should stop after the first success, calls: %v", p.calls)
	}
}

func TestFetcher_FallsBackToListedTrack(t *testing.T) {
	p := &fakeProvider{
		byLang: map[string][]youtube.Segment{"hi": segs(goodText)},
		tracks: []youtube.Track{{VideoID: "vid", LanguageCode: "hi"}},
	}
	f, _ := newTestFetcher(p)

	res := f.Fetch(context.Background(), "vid")
	if !res.OK() || res.Language != "hi" {
		t.Fatalf("expected hi transcript, got %+v", res)
	}
}

func TestFetcher_FallsBackToTranslation(t *testing.T) {
	p := &fakeProvider{
		byLang:     map[string][]youtube.Segment{"hi": segs("[Music] [Music] [Applause]")},
		tracks:     []youtube.Track{{VideoID: "vid", LanguageCode: "hi", Translatable: true}},
		translated: map[string][]youtube.Segment{"hi": segs(goodText)},
	}
	f, _ := newTestFetcher(p)

	res := f.Fetch(context.Background(), "vid")
	if !res.OK() {
		t.Fatalf("expected translated transcript, got %s", res.Outcome)
	}
	if res.Language != "hi-to-en" {
		t.Errorf("Language = %q, want hi-to-en", res.Language)
	}
}

func TestFetcher_NoiseIsFilteredNotFound(t *testing.T) {
	p := &fakeProvider{
		byLang: map[string][]youtube.Segment{"en": segs("[Music] Heat Heat Heat [Music] [Applause]")},
		tracks: []youtube.Track{{VideoID: "vid", LanguageCode: "en"}},
	}
	f, _ := newTestFetcher(p)

	res := f.Fetch(context.Background(), "vid")
	if res.Outcome != Filtered {
		t.Errorf("expected Filtered, got %s", res.Outcome)
	}
	if res.Text != "" || res.Language != "" {
		t.Errorf("non-success result should carry no text: %+v", res)
	}
}

func TestFetcher_NothingAvailable(t *testing.T) {
	p := &fakeProvider{tracksErr: youtube.ErrNotFound}
	f, _ := newTestFetcher(p)

	if res := f.Fetch(context.Background(), "vid"); res.Outcome != NotFound {
		t.Errorf("expected NotFound, got %s", res.Outcome)
	}
}

func TestFetcher_OtherErrorsAreSwallowed(t *testing.T) {
	p := &fakeProvider{
		langErr: map[string]error{"en": errors.New("timedtext vid: unexpected status 500")},
		tracks:  []youtube.Track{{VideoID: "vid", LanguageCode: "fr"}},
	}
	f, _ := newTestFetcher(p)

	if res := f.Fetch(context.Background(), "vid"); res.Outcome != Failed {
		t.Errorf("expected Failed, got %s", res.Outcome)
	}
}

func TestFetcher_BlockedBacksOff(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"sentinel", youtube.ErrBlocked},
		{"message", errors.New("Your IP has been BLOCKED by YouTube")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{langErr: map[string]error{"en": tt.err}}
			f, rec := newTestFetcher(p)

			res := f.Fetch(context.Background(), "vid")
			if res.Outcome != Blocked {
				t.Fatalf("expected Blocked, got %s", res.Outcome)
			}
			if len(p.calls) != 1 {
				t.Errorf("blocked fetch should stop the chain, calls: %v", p.calls)
			}

			last := rec.waits[len(rec.waits)-1]
			if last < 10*time.Second || last > 20*time.Second {
				t.Errorf("backoff %v outside 10-20s", last)
			}
		})
	}
}

func TestFetcher_JitterBeforeEachVideo(t *testing.T) {
	p := &fakeProvider{byLang: map[string][]youtube.Segment{"en": segs(goodText)}}
	f, rec := newTestFetcher(p)

	f.Fetch(context.Background(), "a")
	f.Fetch(context.Background(), "b")

	if len(rec.waits) != 2 {
		t.Fatalf("expected one jitter wait per video, got %v", rec.waits)
	}
	for _, w := range rec.waits {
		if w < 500*time.Millisecond || w > 1500*time.Millisecond {
			t.Errorf("jitter %v outside 0.5-1.5s", w)
		}
	}
}

func TestPacer_EnforcesMinimumInterval(t *testing.T) {
	noSleep := func(ctx context.Context, d time.Duration) error { return nil }
	p := NewPacer(50*time.Millisecond, 0, 0).WithSleep(noSleep)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("three paced requests took %v, want at least two intervals", elapsed)
	}
}

func TestFetcher_CancelledContext(t *testing.T) {
	p := &fakeProvider{byLang: map[string][]youtube.Segment{"en": segs(goodText)}}
	cfg := DefaultConfig()
	cfg.MinInterval = time.Hour
	f := NewFetcher(p, filter.New(), cfg)

	// first request passes the limiter, the second would wait an hour
	ctx, cancel := context.WithCancel(context.Background())
	f.WithSleep(func(context.Context, time.Duration) error { return nil })
	f.Fetch(ctx, "a")
	cancel()

	if res := f.Fetch(ctx, "b"); res.Outcome != Failed {
		t.Errorf("expected Failed on cancelled context, got %s", res.Outcome)
	}
}
