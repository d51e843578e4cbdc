package downloading

import (
	"context"
	"errors"
	"testing"
	"time"

	"hackreview/internal/config"
	"hackreview/internal/retry"
	"hackreview/internal/rundir"
	"hackreview/internal/services"
	"hackreview/internal/stage"
	"hackreview/internal/submission"
	"hackreview/internal/video"
)

type fakeFetcher struct {
	calls int
	dests []string
	errs  []error
}

func (f *fakeFetcher) Download(_ context.Context, _ string, _ submission.Platform, dest string) (video.Metadata, error) {
	f.calls++
	f.dests = append(f.dests, dest)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return video.Metadata{}, err
		}
	}
	return video.Metadata{Path: dest, AnalysisPath: dest, Method: video.MethodYtDlp, SizeBytes: 1024, DurationSeconds: 95}, nil
}

func newTestDownloader(t *testing.T, fetcher *fakeFetcher) (*Downloader, rundir.Dir) {
	t.Helper()
	cfg := config.Default()
	dir := rundir.New(t.TempDir())
	d := NewDownloader(&cfg, dir, fetcher, nil)
	d.SetRetryPolicy(retry.Policy{Attempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }})
	return d, dir
}

func videoItem(url string) stage.Item {
	classified := submission.ClassifyVideoURL(url)
	return stage.Item{
		SubmissionID: "002_clip",
		Submission: submission.Submission{
			ID:            "002_clip",
			VideoURL:      url,
			VideoPlatform: classified.Platform,
		},
	}
}

func TestProcessDownloadsVideo(t *testing.T) {
	fetcher := &fakeFetcher{}
	d, dir := newTestDownloader(t, fetcher)

	outcome, err := d.Process(context.Background(), videoItem("https://www.youtube.com/watch?v=abc123"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	meta, ok := outcome.Payload.(video.Metadata)
	if !ok {
		t.Fatalf("payload type %T", outcome.Payload)
	}
	if meta.Path != dir.VideoPath("002_clip") || fetcher.dests[0] != dir.VideoPath("002_clip") {
		t.Fatalf("dest = %q", meta.Path)
	}
	if outcome.Attempts != 1 {
		t.Fatalf("attempts = %d", outcome.Attempts)
	}
}

func TestProcessRejectsPlaceholderVideo(t *testing.T) {
	fetcher := &fakeFetcher{}
	d, _ := newTestDownloader(t, fetcher)

	_, err := d.Process(context.Background(), videoItem("https://example.com/video"))
	if !errors.Is(err, services.ErrInvalidURL) {
		t.Fatalf("err = %v, want invalid url", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("fetcher called %d times", fetcher.calls)
	}
}

func TestProcessRetriesThenSucceeds(t *testing.T) {
	fetcher := &fakeFetcher{errs: []error{
		services.Wrap(services.ErrTimeout, "download", "yt-dlp", "download exceeded 1s", nil),
		nil,
	}}
	d, _ := newTestDownloader(t, fetcher)

	outcome, err := d.Process(context.Background(), videoItem("https://vimeo.com/12345"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome.Attempts != 2 || fetcher.calls != 2 {
		t.Fatalf("attempts = %d calls = %d, want 2", outcome.Attempts, fetcher.calls)
	}
}

func TestProcessUnavailableIsNotRetried(t *testing.T) {
	fetcher := &fakeFetcher{errs: []error{
		services.Wrap(services.ErrUnavailable, "download", "yt-dlp", "video unavailable", nil),
	}}
	d, _ := newTestDownloader(t, fetcher)

	outcome, err := d.Process(context.Background(), videoItem("https://www.loom.com/share/abc"))
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if outcome.Attempts != 1 {
		t.Fatalf("attempts = %d", outcome.Attempts)
	}
}
