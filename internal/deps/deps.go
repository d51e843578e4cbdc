package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"hackreview/internal/config"
)

// Requirement defines an external executable hackreview relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the executables the configured pipeline runs. ffmpeg
// only trims long videos, so it is optional when trimming is off.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "git", Command: cfg.Tools.Git, Description: "Required to clone repositories"},
		{Name: "yt-dlp", Command: cfg.Tools.YtDlp, Description: "Required to download demo videos"},
		{Name: "ffprobe", Command: cfg.Tools.FFprobe, Description: "Required to measure video duration"},
		{
			Name:        "ffmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Trims videos longer than video_analysis.max_video_duration",
			Optional:    cfg.VideoAnalysis.MaxVideoDuration <= 0,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}
