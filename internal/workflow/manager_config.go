package workflow

import "hackreview/internal/state"

// ConfigureStages registers the concrete stage handlers the workflow will
// run. Stages without a handler are skipped by Run; RunStage reports them as
// unavailable.
func (m *Manager) ConfigureStages(set StageSet) {
	concurrency := m.cfg.Concurrency
	candidates := []pipelineStage{
		{stage: state.StageClone, handler: set.Cloner, workers: concurrency.CloneWorkers},
		{stage: state.StageDownload, handler: set.Downloader, workers: concurrency.VideoDownloadWorkers},
		{stage: state.StageAnalyze, handler: set.Analyzer, workers: concurrency.LLMConcurrentRequests},
		{stage: state.StageReport, handler: set.Reporter, workers: concurrency.ReportWorkers},
	}

	stages := make([]pipelineStage, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.handler == nil {
			continue
		}
		if candidate.workers <= 0 {
			candidate.workers = 1
		}
		stages = append(stages, candidate)
	}

	m.mu.Lock()
	m.stages = stages
	m.mu.Unlock()
}

func (m *Manager) configuredStages() []pipelineStage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]pipelineStage(nil), m.stages...)
}

func (m *Manager) stageFor(name state.Stage) (pipelineStage, bool) {
	for _, candidate := range m.configuredStages() {
		if candidate.stage == name {
			return candidate, true
		}
	}
	return pipelineStage{}, false
}
