package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"hackreview/internal/analysis"
	"hackreview/internal/cloning"
	"hackreview/internal/config"
	"hackreview/internal/downloading"
	"hackreview/internal/logging"
	"hackreview/internal/reporting"
	"hackreview/internal/rundir"
	"hackreview/internal/state"
	"hackreview/internal/workflow"
)

type commandContext struct {
	configFlag   *string
	outputFlag   *string
	logLevelFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag, outputFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		outputFlag:   outputFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
				if err := cfg.Validate(); err != nil {
					c.configErr = fmt.Errorf("--log-level: %w", err)
					return
				}
			}
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) runDir() (rundir.Dir, error) {
	output := defaultOutputDir
	if c.outputFlag != nil && strings.TrimSpace(*c.outputFlag) != "" {
		output = strings.TrimSpace(*c.outputFlag)
	}
	path, err := config.ExpandPath(output)
	if err != nil {
		return rundir.Dir{}, fmt.Errorf("resolve output directory: %w", err)
	}
	return rundir.New(path), nil
}

// session is everything a pipeline command needs, opened against one
// locked run directory.
type session struct {
	cfg     *config.Config
	dir     rundir.Dir
	store   *state.SQLiteStore
	logger  *slog.Logger
	manager *workflow.Manager
}

// openSession locks the run directory, creates its layout, and wires the
// stage handlers into a workflow manager.
func (c *commandContext) openSession(ctx context.Context) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	dir, err := c.runDir()
	if err != nil {
		return nil, err
	}
	locked, err := dir.Lock()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, dir: locked}
	if err := locked.Ensure(); err != nil {
		s.Close()
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg, locked.LogsDir())
	if err != nil {
		s.Close()
		return nil, err
	}
	s.logger = logger
	store, err := state.OpenSQLite(ctx, locked.StatePath())
	if err != nil {
		s.Close()
		return nil, err
	}
	s.store = store

	s.manager = workflow.NewManager(cfg, store, locked, logger)
	s.manager.ConfigureStages(buildStages(cfg, locked, logger))
	return s, nil
}

func (s *session) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	errs = append(errs, s.dir.Unlock())
	return errors.Join(errs...)
}

func buildStages(cfg *config.Config, dir rundir.Dir, logger *slog.Logger) workflow.StageSet {
	return workflow.StageSet{
		Cloner:     cloning.NewCloner(cfg, dir, nil, logger),
		Downloader: downloading.NewDownloader(cfg, dir, nil, logger),
		Analyzer:   analysis.NewAnalyzer(cfg, analysis.DefaultReviewers, logger),
		Reporter:   reporting.NewReporter(dir, logger),
	}
}

func stateExists(dir rundir.Dir) bool {
	info, err := os.Stat(dir.StatePath())
	return err == nil && !info.IsDir()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
