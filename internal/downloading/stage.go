package downloading

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"hackreview/internal/config"
	"hackreview/internal/logging"
	"hackreview/internal/media/ffprobe"
	"hackreview/internal/retry"
	"hackreview/internal/rundir"
	"hackreview/internal/services"
	"hackreview/internal/stage"
	"hackreview/internal/submission"
	"hackreview/internal/video"
)

const stageName = "download"

// Fetcher downloads one video to dest.
type Fetcher interface {
	Download(ctx context.Context, rawURL string, platform submission.Platform, dest string) (video.Metadata, error)
}

// Downloader is the DOWNLOAD stage handler. The record payload is
// video.Metadata.
type Downloader struct {
	cfg      *config.Config
	dir      rundir.Dir
	fetcher  Fetcher
	binaries []string
	policy   retry.Policy
	logger   *slog.Logger
}

// NewDownloader constructs the DOWNLOAD stage handler. A nil fetcher uses
// yt-dlp, ffprobe and ffmpeg from the [tools] section.
func NewDownloader(cfg *config.Config, dir rundir.Dir, fetcher Fetcher, logger *slog.Logger) *Downloader {
	d := &Downloader{
		cfg:     cfg,
		dir:     dir,
		fetcher: fetcher,
		policy:  retry.FromConfig(cfg.Retry),
	}
	if fetcher == nil {
		d.fetcher = video.New(video.Options{
			YtDlpBinary:  cfg.Tools.YtDlp,
			FFmpegBinary: cfg.Tools.FFmpeg,
			Timeout:      time.Duration(cfg.Timeouts.DownloadSeconds) * time.Second,
			MaxDuration:  cfg.VideoAnalysis.MaxVideoDuration,
			Prober:       ffprobe.New(cfg.Tools.FFprobe, time.Duration(cfg.Timeouts.ProbeSeconds)*time.Second),
		})
		d.binaries = []string{cfg.Tools.YtDlp, cfg.Tools.FFprobe, cfg.Tools.FFmpeg}
	}
	d.SetLogger(logger)
	return d
}

// SetLogger updates the downloader's logging destination.
func (d *Downloader) SetLogger(logger *slog.Logger) {
	d.logger = logging.NewComponentLogger(logger, "downloading")
}

// SetRetryPolicy replaces the retry policy.
func (d *Downloader) SetRetryPolicy(policy retry.Policy) {
	d.policy = policy
}

// Prepare verifies the download toolchain is installed.
func (d *Downloader) Prepare(ctx context.Context) error {
	if missing := d.missingBinaries(); len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, stageName, "lookup tools",
			fmt.Sprintf("missing executables: %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

func (d *Downloader) missingBinaries() []string {
	var missing []string
	for _, binary := range d.binaries {
		if binary == "" {
			continue
		}
		if _, err := exec.LookPath(binary); err != nil {
			missing = append(missing, binary)
		}
	}
	return missing
}

// Process downloads one demo video.
func (d *Downloader) Process(ctx context.Context, item stage.Item) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, d.logger)
	sub := item.Submission
	if !sub.VideoDownloadable() {
		detail := "no downloadable video URL"
		if issues := sub.IssuesFor("video"); len(issues) > 0 {
			detail = fmt.Sprintf("no downloadable video URL (%s)", strings.Join(issues, ", "))
		}
		return stage.Outcome{}, services.Wrap(services.ErrInvalidURL, stageName, "validate url", detail, nil)
	}

	dest := d.dir.VideoPath(item.SubmissionID)
	var meta video.Metadata
	policy := d.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Info("retrying download",
			logging.String(logging.FieldEventType, "item_retry"),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}
	result, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		var downloadErr error
		meta, downloadErr = d.fetcher.Download(ctx, sub.VideoURL, sub.VideoPlatform, dest)
		return downloadErr
	})
	outcome := stage.Outcome{Attempts: result.Attempts}
	if err != nil {
		return outcome, err
	}
	outcome.Payload = meta
	logger.Info("video downloaded",
		logging.String("method", meta.Method),
		logging.Int64("size_bytes", meta.SizeBytes),
		logging.Float64("duration_seconds", meta.DurationSeconds),
		logging.Bool("trimmed", meta.Trimmed),
	)
	return outcome, nil
}

// HealthCheck reports whether the download toolchain resolves.
func (d *Downloader) HealthCheck(ctx context.Context) stage.Health {
	if missing := d.missingBinaries(); len(missing) > 0 {
		return stage.Unhealthy("downloading", "missing "+strings.Join(missing, ", "))
	}
	return stage.Healthy("downloading")
}
