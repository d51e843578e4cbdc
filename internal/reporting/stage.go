package reporting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"

	"hackreview/internal/analysis"
	"hackreview/internal/cloning"
	"hackreview/internal/fileutil"
	"hackreview/internal/flags"
	"hackreview/internal/logging"
	"hackreview/internal/rundir"
	"hackreview/internal/services"
	"hackreview/internal/stage"
	"hackreview/internal/state"
	"hackreview/internal/video"
)

const stageName = "report"

// Payload is the REPORT record payload.
type Payload struct {
	Path          string   `json:"path"`
	Digest        string   `json:"digest"`
	WeightedTotal *float64 `json:"weighted_total,omitempty"`
}

// Reporter is the REPORT stage handler.
type Reporter struct {
	dir    rundir.Dir
	logger *slog.Logger
}

// NewReporter constructs the REPORT stage handler.
func NewReporter(dir rundir.Dir, logger *slog.Logger) *Reporter {
	r := &Reporter{dir: dir}
	r.SetLogger(logger)
	return r
}

// SetLogger updates the reporter's logging destination.
func (r *Reporter) SetLogger(logger *slog.Logger) {
	r.logger = logging.NewComponentLogger(logger, "reporting")
}

// Prepare creates the reports directory.
func (r *Reporter) Prepare(context.Context) error {
	if err := os.MkdirAll(r.dir.ProjectsDir(), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "create reports directory", "", err)
	}
	return nil
}

// Process renders one project report.
func (r *Reporter) Process(ctx context.Context, item stage.Item) (stage.Outcome, error) {
	view := ProjectView{Submission: item.Submission}

	var result analysis.Payload
	if err := item.Decode(state.StageAnalyze, &result); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, stageName, "load analyze record", "", err)
	}
	view.Analysis = &result
	if item.Succeeded(state.StageClone) {
		var repo cloning.Payload
		if err := item.Decode(state.StageClone, &repo); err != nil {
			return stage.Outcome{}, services.Wrap(services.ErrValidation, stageName, "load clone record", "", err)
		}
		view.Repo = &repo
	}
	if item.Succeeded(state.StageDownload) {
		var clip video.Metadata
		if err := item.Decode(state.StageDownload, &clip); err != nil {
			return stage.Outcome{}, services.Wrap(services.ErrValidation, stageName, "load download record", "", err)
		}
		view.Video = &clip
	}
	upstream := make([]state.Record, 0, len(item.Upstream))
	for _, record := range item.Upstream {
		upstream = append(upstream, record)
	}
	view.Flags = flags.FromRecords(upstream...)

	path := r.dir.ProjectReportPath(item.SubmissionID)
	content := []byte(RenderProject(view))
	if err := fileutil.WriteFileAtomic(path, content, 0o644); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrExternalTool, stageName, "write project report", "", err)
	}
	sum := sha256.Sum256(content)
	payload := Payload{Path: path, Digest: hex.EncodeToString(sum[:])}
	if result.Scores != nil {
		total := result.Scores.WeightedTotal
		payload.WeightedTotal = &total
	}
	logging.WithContext(ctx, r.logger).Debug("project report written", logging.String("path", path))
	return stage.Outcome{Payload: payload}, nil
}

// HealthCheck always reports ready; rendering has no external dependencies.
func (r *Reporter) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("reporting")
}
