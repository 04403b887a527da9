package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/gridrun/internal/app"
)

// HarnessResult holds the outcomes of a pipeline test run.
type HarnessResult struct {
	// Output is everything the run wrote: logs plus the final summary.
	Output string
	Err    error
}

// RunPipelineTest writes the given pipeline files into a temporary
// directory, runs the full application against them with a background
// context, and returns the captured output. Options are forwarded to the
// app, so tests typically inject a FakeExecutor.
func RunPipelineTest(t *testing.T, files map[string]string, opts ...app.Option) *HarnessResult {
	t.Helper()
	return RunPipelineTestWithContext(context.Background(), t, files, opts...)
}

// RunPipelineTestWithContext is RunPipelineTest with a caller-provided
// context, for cancellation tests.
func RunPipelineTestWithContext(ctx context.Context, t *testing.T, files map[string]string, opts ...app.Option) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	var only string
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
		only = filePath
	}

	// A single file is passed directly so the loader is chosen by its
	// extension; multiple files go through the directory.
	path := tmpDir
	if len(files) == 1 {
		path = only
	}

	cfg, err := app.NewConfig(app.Config{
		PipelinePath: path,
		LogFormat:    "text",
		LogLevel:     "debug",
		Workers:      4,
	})
	require.NoError(t, err)

	out := &SafeBuffer{}
	testApp := app.New(out, cfg, opts...)
	runErr := testApp.Run(ctx)

	return &HarnessResult{Output: out.String(), Err: runErr}
}
