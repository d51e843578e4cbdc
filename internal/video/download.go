package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"hackreview/internal/fileutil"
	"hackreview/internal/services"
	"hackreview/internal/submission"
)

const stageName = "download"

// Method names how a video was fetched.
const (
	MethodYtDlp       = "yt-dlp"
	MethodGoogleDrive = "google-drive"
)

// maxFileSize is passed to yt-dlp and enforced on direct downloads.
const (
	maxFileSize      = "500M"
	maxFileSizeBytes = 500 << 20
)

// Metadata describes a downloaded video.
type Metadata struct {
	Path            string  `json:"path"`
	Method          string  `json:"method"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	// AnalysisPath is the file handed to the video reviewer; it differs from
	// Path when the download was trimmed.
	AnalysisPath string `json:"analysis_path"`
	Trimmed      bool   `json:"trimmed"`
}

// DurationProber reports the duration of a media file in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Options configure a Downloader.
type Options struct {
	YtDlpBinary  string
	FFmpegBinary string
	Timeout      time.Duration
	// MaxDuration is the length in seconds beyond which videos are trimmed.
	MaxDuration int
	Prober      DurationProber
	HTTPClient  *http.Client
	// DriveBaseURL overrides the Google Drive download endpoint.
	DriveBaseURL string
}

// Downloader fetches demo videos with yt-dlp, downloading Google Drive links
// directly first.
type Downloader struct {
	opts Options
}

const defaultDriveBaseURL = "https://drive.google.com/uc"

// New returns a Downloader.
func New(opts Options) *Downloader {
	if strings.TrimSpace(opts.YtDlpBinary) == "" {
		opts.YtDlpBinary = "yt-dlp"
	}
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.DriveBaseURL == "" {
		opts.DriveBaseURL = defaultDriveBaseURL
	}
	return &Downloader{opts: opts}
}

// Download fetches rawURL to dest (an .mp4 path), probes it, and trims it
// when it exceeds the configured duration. Partial files are removed on
// failure.
func (d *Downloader) Download(ctx context.Context, rawURL string, platform submission.Platform, dest string) (Metadata, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Metadata{}, services.Wrap(services.ErrInvalidURL, stageName, "download", "no video URL", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Metadata{}, services.Wrap(services.ErrExternalTool, stageName, "prepare destination", "", err)
	}
	removeOutputs(dest)

	callCtx := ctx
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	meta := Metadata{Path: dest}
	var err error
	if platform == submission.PlatformGoogleDrive {
		if id, ok := submission.GoogleDriveFileID(rawURL); ok {
			meta.Method = MethodGoogleDrive
			err = d.downloadDrive(callCtx, id, dest)
		}
	}
	if meta.Method == "" || err != nil {
		if err != nil && ctx.Err() != nil {
			return Metadata{}, ctx.Err()
		}
		meta.Method = MethodYtDlp
		err = d.downloadYtDlp(callCtx, rawURL, dest)
	}
	if err != nil {
		removeOutputs(dest)
		if ctx.Err() != nil {
			return Metadata{}, ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return Metadata{}, services.Wrap(services.ErrTimeout, stageName, meta.Method, fmt.Sprintf("download exceeded %s", d.opts.Timeout), nil)
		}
		return Metadata{}, err
	}

	info, statErr := os.Stat(dest)
	if statErr != nil || info.Size() == 0 {
		removeOutputs(dest)
		return Metadata{}, services.Wrap(services.ErrUnavailable, stageName, meta.Method, "download produced no file", statErr)
	}
	meta.SizeBytes = info.Size()
	meta.AnalysisPath = dest

	if d.opts.Prober != nil {
		seconds, err := d.opts.Prober.Duration(ctx, dest)
		if err != nil {
			removeOutputs(dest)
			return Metadata{}, err
		}
		meta.DurationSeconds = float64(int(seconds*10+0.5)) / 10
		if d.opts.MaxDuration > 0 && seconds > float64(d.opts.MaxDuration) {
			trimmed := TrimmedPath(dest)
			if err := d.trim(ctx, dest, trimmed); err != nil {
				removeOutputs(dest)
				return Metadata{}, err
			}
			meta.AnalysisPath = trimmed
			meta.Trimmed = true
		}
	}
	return meta, nil
}

// TrimmedPath is where the shortened copy of dest is written.
func TrimmedPath(dest string) string {
	ext := filepath.Ext(dest)
	return strings.TrimSuffix(dest, ext) + ".trimmed" + ext
}

func removeOutputs(dest string) {
	_ = os.Remove(dest)
	_ = os.Remove(TrimmedPath(dest))
	_ = os.Remove(dest + ".part")
}

func (d *Downloader) downloadYtDlp(ctx context.Context, rawURL, dest string) error {
	args := []string{
		"--no-playlist",
		"--max-filesize", maxFileSize,
		"--merge-output-format", "mp4",
		"--socket-timeout", "30",
		"--no-progress",
		"-o", dest,
		"--", rawURL,
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.opts.YtDlpBinary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return services.Wrap(services.ErrExternalTool, stageName, MethodYtDlp, "yt-dlp binary not found", err)
		}
		return classifyYtDlpError(stderr.String(), err)
	}
	return nil
}

func classifyYtDlpError(stderr string, err error) error {
	message := lastErrorLine(stderr)
	if message == "" {
		message = err.Error()
	}
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "unsupported url"),
		strings.Contains(lower, "is not a valid url"):
		return services.Wrap(services.ErrInvalidURL, stageName, MethodYtDlp, message, nil)
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "private video"),
		strings.Contains(lower, "this video is private"),
		strings.Contains(lower, "has been removed"),
		strings.Contains(lower, "http error 404"),
		strings.Contains(lower, "http error 403"),
		strings.Contains(lower, "larger than max-filesize"),
		strings.Contains(lower, "sign in to confirm"):
		return services.Wrap(services.ErrUnavailable, stageName, MethodYtDlp, message, nil)
	case strings.Contains(lower, "timed out"),
		strings.Contains(lower, "unable to download webpage"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "http error 5"),
		strings.Contains(lower, "http error 429"):
		return services.Wrap(services.ErrTransient, stageName, MethodYtDlp, message, nil)
	default:
		return services.Wrap(services.ErrUnavailable, stageName, MethodYtDlp, message, nil)
	}
}

func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
			if len(line) > 300 {
				line = line[:300]
			}
			return line
		}
	}
	if len(lines) > 0 {
		line := strings.TrimSpace(lines[len(lines)-1])
		if len(line) > 300 {
			line = line[:300]
		}
		return line
	}
	return ""
}

func (d *Downloader) downloadDrive(ctx context.Context, fileID, dest string) error {
	endpoint := d.opts.DriveBaseURL + "?export=download&confirm=t&id=" + fileID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrInvalidURL, stageName, MethodGoogleDrive, "build request", err)
	}
	resp, err := d.opts.HTTPClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, stageName, MethodGoogleDrive, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrUnavailable, stageName, MethodGoogleDrive, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return services.Wrap(services.ErrTransient, stageName, MethodGoogleDrive, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return services.Wrap(services.ErrUnavailable, stageName, MethodGoogleDrive, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	// Drive answers with an HTML interstitial for files it will not serve directly.
	if strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return services.Wrap(services.ErrUnavailable, stageName, MethodGoogleDrive, "file requires interactive confirmation", nil)
	}

	written, err := fileutil.WriteStreamAtomic(dest, resp.Body, maxFileSizeBytes)
	if err != nil {
		if errors.Is(err, fileutil.ErrTooLarge) {
			return services.Wrap(services.ErrUnavailable, stageName, MethodGoogleDrive, "file larger than "+maxFileSize, nil)
		}
		return services.Wrap(services.ErrTransient, stageName, MethodGoogleDrive, "write video", err)
	}
	if written == 0 {
		return services.Wrap(services.ErrUnavailable, stageName, MethodGoogleDrive, "empty response", nil)
	}
	return nil
}

// trim keeps the first MaxDuration seconds of src, scaled down to 720p.
func (d *Downloader) trim(ctx context.Context, src, dst string) error {
	args := []string{
		"-y", "-v", "error",
		"-i", src,
		"-t", fmt.Sprintf("%d", d.opts.MaxDuration),
		"-vf", "scale=-2:'min(720,ih)'",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "28",
		"-c:a", "aac", "-b:a", "96k",
		"-movflags", "+faststart",
		dst,
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.opts.FFmpegBinary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(dst)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return services.Wrap(services.ErrExternalTool, stageName, "ffmpeg trim", detail, nil)
	}
	return nil
}
