// Package hcl implements the native HCL pipeline loader. It parses
// pipeline files into the schema structures and translates them into the
// format-agnostic config model.
package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/gridrun/internal/config"
	"github.com/vk/gridrun/internal/ctxlog"
	"github.com/vk/gridrun/internal/fsutil"
	"github.com/vk/gridrun/internal/schema"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load reads every .hcl file under the given paths and merges them into
// a single model. Job declaration order follows file order (sorted) and
// block order within each file.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	model := &config.Model{
		Pipeline: &config.Pipeline{},
		Runners:  make(map[string]*config.RunnerDef),
	}

	for _, path := range paths {
		files, err := fsutil.FindFilesByExtensions(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("finding pipeline files in %q: %w", path, err)
		}
		for _, file := range files {
			logger.Debug("Parsing pipeline file.", "file", file)
			if err := l.loadFile(ctx, file, model); err != nil {
				return nil, err
			}
		}
	}

	if len(model.Pipeline.Jobs) == 0 {
		return nil, fmt.Errorf("no jobs defined in %v", paths)
	}
	logger.Debug("Pipeline configuration loaded.", "jobs", len(model.Pipeline.Jobs), "runners", len(model.Runners))
	return model, nil
}

// loadFile parses one file and appends its contents to the model.
func (l *Loader) loadFile(ctx context.Context, path string, model *config.Model) error {
	logger := ctxlog.FromContext(ctx)

	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("parsing %s: %w", path, diags)
	}

	var raw schema.PipelineConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return fmt.Errorf("decoding %s: %w", path, diags)
	}

	if raw.Name != "" {
		if model.Pipeline.Name != "" && model.Pipeline.Name != raw.Name {
			logger.Warn("Pipeline name redefined, keeping the first.", "kept", model.Pipeline.Name, "ignored", raw.Name)
		} else {
			model.Pipeline.Name = raw.Name
		}
	}

	for _, rawJob := range raw.Jobs {
		job, err := l.translateJob(rawJob)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		model.Pipeline.Jobs = append(model.Pipeline.Jobs, job)
	}

	for _, rawRunner := range raw.Runners {
		if _, exists := model.Runners[rawRunner.Name]; exists {
			logger.Warn("Duplicate runner definition found, it will be overwritten.", "runner", rawRunner.Name)
		}
		model.Runners[rawRunner.Name] = &config.RunnerDef{
			Name:    rawRunner.Name,
			Labels:  rawRunner.Labels,
			Env:     rawRunner.Env,
			Workdir: rawRunner.Workdir,
		}
	}
	return nil
}
