package executor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridrun/internal/config"
	"github.com/vk/gridrun/internal/dag"
	"github.com/vk/gridrun/internal/executor"
	"github.com/vk/gridrun/internal/node"
	"github.com/vk/gridrun/internal/runners"
	"github.com/vk/gridrun/internal/shell"
	"github.com/vk/gridrun/internal/testutil"
)

// runGraph builds a graph from the given jobs and drains it through the
// executor with the provided command executor, returning the graph for
// assertions.
func runGraph(t *testing.T, sh shell.Executor, jobs ...*config.Job) *dag.Graph {
	t.Helper()
	return runGraphWithContext(context.Background(), t, sh, jobs...)
}

func runGraphWithContext(ctx context.Context, t *testing.T, sh shell.Executor, jobs ...*config.Job) *dag.Graph {
	t.Helper()

	model := &config.Model{Pipeline: &config.Pipeline{Name: "test", Jobs: jobs}}
	graph, err := dag.Build(ctx, model)
	require.NoError(t, err)

	exec := executor.New(graph, 4, sh, runners.NewPool(nil), nil)
	require.NoError(t, exec.Run(ctx))
	return graph
}

func simpleJob(name string, needs []string, commands ...string) *config.Job {
	j := &config.Job{Name: name, Needs: needs, Required: true}
	for _, cmd := range commands {
		j.Steps = append(j.Steps, &config.Step{Name: cmd, Run: cmd})
	}
	return j
}

func guard(t *testing.T, src string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test", hcl.InitialPos)
	require.False(t, diags.HasErrors(), "guard %q: %v", src, diags)
	return expr
}

func TestRun_LinearChainRunsInOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fake := testutil.NewFakeExecutor()

	// --- Act ---
	graph := runGraph(t, fake,
		simpleJob("a", nil, "cmd-a"),
		simpleJob("b", []string{"a"}, "cmd-b"),
		simpleJob("c", []string{"b"}, "cmd-c"),
	)

	// --- Assert ---
	for _, id := range []string{"job.a", "job.b", "job.c"} {
		require.Equal(t, node.Succeeded, graph.Nodes[id].Outcome(), id)
	}
	var commands []string
	for _, call := range fake.Calls() {
		commands = append(commands, call.Command)
	}
	require.Equal(t, []string{"cmd-a", "cmd-b", "cmd-c"}, commands)
}

func TestRun_JobStartsOnlyAfterAllDependencies(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// m is gated on both l1 and l2, so its command must be recorded after
	// both of theirs no matter how the workers interleave.
	fake := testutil.NewFakeExecutor()

	// --- Act ---
	graph := runGraph(t, fake,
		simpleJob("l1", nil, "cmd-l1"),
		simpleJob("l2", nil, "cmd-l2"),
		simpleJob("m", []string{"l1", "l2"}, "cmd-m"),
	)

	// --- Assert ---
	require.Equal(t, node.Succeeded, graph.Nodes["job.m"].Outcome())
	calls := fake.Calls()
	require.Equal(t, "cmd-m", calls[len(calls)-1].Command)
}

func TestRun_FailureSkipsTransitiveDependents(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fake := testutil.NewFakeExecutor()
	fake.StubExit("cmd-a", 1)

	// --- Act ---
	graph := runGraph(t, fake,
		simpleJob("a", nil, "cmd-a"),
		simpleJob("b", []string{"a"}, "cmd-b"),
		simpleJob("c", []string{"b"}, "cmd-c"),
	)

	// --- Assert ---
	require.Equal(t, node.Failed, graph.Nodes["job.a"].Outcome())
	require.Equal(t, node.Skipped, graph.Nodes["job.b"].Outcome())
	require.Equal(t, node.Skipped, graph.Nodes["job.c"].Outcome())

	// Skipped jobs never reach the command executor.
	require.Zero(t, fake.CallCount("cmd-b"))
	require.Zero(t, fake.CallCount("cmd-c"))

	// The skip reason names the direct dependency that did not succeed.
	var upstream *executor.UpstreamError
	require.ErrorAs(t, graph.Nodes["job.b"].Err, &upstream)
	require.Equal(t, "job.a", upstream.Dependency)
	require.Equal(t, node.Failed, upstream.Outcome)

	require.ErrorAs(t, graph.Nodes["job.c"].Err, &upstream)
	require.Equal(t, "job.b", upstream.Dependency)
	require.Equal(t, node.Skipped, upstream.Outcome)
}

func TestRun_FailureDoesNotAffectIndependentSubgraph(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fake := testutil.NewFakeExecutor()
	fake.StubExit("cmd-a", 1)

	// --- Act ---
	graph := runGraph(t, fake,
		simpleJob("a", nil, "cmd-a"),
		simpleJob("b", []string{"a"}, "cmd-b"),
		simpleJob("x", nil, "cmd-x"),
		simpleJob("y", []string{"x"}, "cmd-y"),
	)

	// --- Assert ---
	require.Equal(t, node.Failed, graph.Nodes["job.a"].Outcome())
	require.Equal(t, node.Skipped, graph.Nodes["job.b"].Outcome())
	require.Equal(t, node.Succeeded, graph.Nodes["job.x"].Outcome())
	require.Equal(t, node.Succeeded, graph.Nodes["job.y"].Outcome())
}

func TestRun_ContinueOnErrorKeepsJobGreen(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fake := testutil.NewFakeExecutor()
	fake.StubExit("flaky", 1)

	j := &config.Job{Name: "a", Required: true, Steps: []*config.Step{
		{Name: "flaky", Run: "flaky", ContinueOnError: true},
		{Name: "after", Run: "after"},
	}}

	// --- Act ---
	graph := runGraph(t, fake, j, simpleJob("b", []string{"a"}, "cmd-b"))

	// --- Assert ---
	// The failing step is recorded but never fails the job, and later
	// steps plus dependents still run.
	require.Equal(t, node.Succeeded, graph.Nodes["job.a"].Outcome())
	require.Equal(t, node.Succeeded, graph.Nodes["job.b"].Outcome())
	require.Equal(t, 1, fake.CallCount("after"))

	steps := graph.Nodes["job.a"].StepResults()
	require.Len(t, steps, 2)
	require.Equal(t, node.StepFailed, steps[0].Status)
	require.Equal(t, 1, steps[0].ExitCode)
	require.Equal(t, node.StepSucceeded, steps[1].Status)
}

func TestRun_StepFailureStopsRemainingSteps(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeExecutor()
	fake.StubExit("boom", 2)

	graph := runGraph(t, fake, simpleJob("a", nil, "first", "boom", "never"))

	require.Equal(t, node.Failed, graph.Nodes["job.a"].Outcome())
	require.Equal(t, 1, fake.CallCount("first"))
	require.Zero(t, fake.CallCount("never"))
}

func TestRun_GuardFalseSkipsStepWithoutExecution(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fake := testutil.NewFakeExecutor()
	j := &config.Job{Name: "a", Required: true, Steps: []*config.Step{
		{Name: "guarded", Run: "guarded", If: guard(t, "false")},
		{Name: "plain", Run: "plain"},
	}}

	// --- Act ---
	graph := runGraph(t, fake, j)

	// --- Assert ---
	require.Equal(t, node.Succeeded, graph.Nodes["job.a"].Outcome())
	require.Zero(t, fake.CallCount("guarded"))
	require.Equal(t, 1, fake.CallCount("plain"))

	steps := graph.Nodes["job.a"].StepResults()
	require.Equal(t, node.StepSkipped, steps[0].Status)
}

func TestRun_GuardSeesMatrixValues(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fake := testutil.NewFakeExecutor()
	j := &config.Job{
		Name:     "a",
		Required: true,
		Matrix: &config.Matrix{Axes: []config.Axis{
			{Name: "os", Values: []string{"linux", "darwin"}},
		}},
		Steps: []*config.Step{
			{Name: "linux-only", Run: "linux-only", If: guard(t, `matrix.os == "linux"`)},
		},
	}

	// --- Act ---
	graph := runGraph(t, fake, j)

	// --- Assert ---
	// Both instances succeed, but only the linux one executed the step.
	require.Equal(t, node.Succeeded, graph.Nodes["job.a[os=linux]"].Outcome())
	require.Equal(t, node.Succeeded, graph.Nodes["job.a[os=darwin]"].Outcome())
	require.Equal(t, 1, fake.CallCount("linux-only"))
}

func TestRun_GuardEvaluationErrorFailsJob(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeExecutor()
	j := &config.Job{Name: "a", Required: true, Steps: []*config.Step{
		{Name: "bad", Run: "bad", If: guard(t, "matrix.nonexistent")},
	}}

	graph := runGraph(t, fake, j)

	require.Equal(t, node.Failed, graph.Nodes["job.a"].Outcome())
	require.Zero(t, fake.CallCount("bad"))
}

func TestRun_TimeoutIsDistinctFromFailure(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fake := testutil.NewFakeExecutor()
	fake.Stub("slow", &shell.Result{ExitCode: -1, TimedOut: true, Duration: time.Second}, nil)

	j := &config.Job{Name: "a", Required: true, Timeout: time.Second, Steps: []*config.Step{
		{Name: "slow", Run: "slow"},
	}}

	// --- Act ---
	graph := runGraph(t, fake, j, simpleJob("b", []string{"a"}, "cmd-b"))

	// --- Assert ---
	require.Equal(t, node.TimedOut, graph.Nodes["job.a"].Outcome())
	require.Equal(t, node.Skipped, graph.Nodes["job.b"].Outcome())

	var timeoutErr *executor.StepTimeoutError
	require.ErrorAs(t, graph.Nodes["job.a"].Err, &timeoutErr)
	require.Equal(t, "slow", timeoutErr.Step)
}

func TestRun_StepTimeoutOverridesJobDefault(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeExecutor()
	j := &config.Job{Name: "a", Required: true, Timeout: time.Minute, Steps: []*config.Step{
		{Name: "fast", Run: "fast", Timeout: time.Second},
		{Name: "default", Run: "default"},
	}}

	runGraph(t, fake, j)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, time.Second, calls[0].Timeout)
	require.Equal(t, time.Minute, calls[1].Timeout)
}

func TestRun_LaunchFailureFailsJob(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeExecutor()
	launchErr := &shell.LaunchError{Command: "ghost", Err: context.DeadlineExceeded}
	fake.Stub("ghost", nil, launchErr)

	graph := runGraph(t, fake, simpleJob("a", nil, "ghost"))

	require.Equal(t, node.Failed, graph.Nodes["job.a"].Outcome())
	var gotErr *shell.LaunchError
	require.ErrorAs(t, graph.Nodes["job.a"].Err, &gotErr)
}

func TestRun_RunnerSelectionFailureFailsJobBeforeAnyStep(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	fake := testutil.NewFakeExecutor()
	j := simpleJob("a", nil, "cmd-a")
	j.RunsOn = []string{"nonexistent-label"}

	// --- Act ---
	graph := runGraph(t, fake, j, simpleJob("b", []string{"a"}, "cmd-b"))

	// --- Assert ---
	require.Equal(t, node.Failed, graph.Nodes["job.a"].Outcome())
	require.Equal(t, node.Skipped, graph.Nodes["job.b"].Outcome())
	require.Zero(t, fake.CallCount("cmd-a"))

	var selErr *runners.SelectionError
	require.ErrorAs(t, graph.Nodes["job.a"].Err, &selErr)
}

func TestRun_MatrixInstancesAllExecute(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeExecutor()
	j := &config.Job{
		Name:     "build",
		Required: true,
		Matrix: &config.Matrix{Axes: []config.Axis{
			{Name: "os", Values: []string{"linux", "darwin"}},
			{Name: "arch", Values: []string{"amd64", "arm64"}},
		}},
		Steps: []*config.Step{{Name: "compile", Run: "compile"}},
	}

	graph := runGraph(t, fake, j)

	require.Len(t, graph.Nodes, 4)
	require.Equal(t, 4, fake.CallCount("compile"))
	for _, n := range graph.Ordered() {
		require.Equal(t, node.Succeeded, n.Outcome(), n.ID())
	}
}

func TestRun_OneMatrixInstanceFailingSkipsDependentsOnly(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The dependent is gated on every instance of the template, so one
	// red instance is enough to skip it; sibling instances still run.
	fake := testutil.NewFakeExecutor()
	fake.StubExit("test-linux", 1)

	j := &config.Job{
		Name:     "test",
		Required: true,
		Matrix: &config.Matrix{Axes: []config.Axis{
			{Name: "os", Values: []string{"linux", "darwin"}},
		}},
		Steps: []*config.Step{
			{Name: "run", Run: "test-linux", If: guard(t, `matrix.os == "linux"`)},
			{Name: "other", Run: "test-other", If: guard(t, `matrix.os != "linux"`)},
		},
	}

	// --- Act ---
	graph := runGraph(t, fake, j, simpleJob("merge", []string{"test"}, "cmd-merge"))

	// --- Assert ---
	require.Equal(t, node.Failed, graph.Nodes["job.test[os=linux]"].Outcome())
	require.Equal(t, node.Succeeded, graph.Nodes["job.test[os=darwin]"].Outcome())
	require.Equal(t, node.Skipped, graph.Nodes["job.merge"].Outcome())
}

// hangingExecutor blocks one designated command until the run context is
// canceled, delegating everything else to the embedded fake.
type hangingExecutor struct {
	*testutil.FakeExecutor
	hangOn  string
	started chan struct{}
	once    sync.Once
}

func (h *hangingExecutor) Exec(ctx context.Context, spec shell.Spec) (*shell.Result, error) {
	if spec.Command == h.hangOn {
		h.once.Do(func() { close(h.started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return h.FakeExecutor.Exec(ctx, spec)
}

func TestRun_CancelDuringStepMarksRunningJobCanceled(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The first step of job a blocks until the run is aborted, so the
	// cancellation lands while the job is mid-step, not before dispatch.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh := &hangingExecutor{
		FakeExecutor: testutil.NewFakeExecutor(),
		hangOn:       "hang",
		started:      make(chan struct{}),
	}
	go func() {
		<-sh.started
		cancel()
	}()

	// --- Act ---
	graph := runGraphWithContext(ctx, t, sh,
		simpleJob("a", nil, "hang", "never"),
		simpleJob("b", []string{"a"}, "cmd-b"),
	)

	// --- Assert ---
	// The interrupted job ends Canceled, later steps never run, and
	// dependents cascade to Skipped.
	require.Equal(t, node.Canceled, graph.Nodes["job.a"].Outcome())
	require.Equal(t, node.Skipped, graph.Nodes["job.b"].Outcome())
	require.Zero(t, sh.CallCount("never"))
	require.Zero(t, sh.CallCount("cmd-b"))

	var upstream *executor.UpstreamError
	require.ErrorAs(t, graph.Nodes["job.b"].Err, &upstream)
	require.Equal(t, node.Canceled, upstream.Outcome)
}

func TestRun_CanceledContextCancelsPendingJobs(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := testutil.NewFakeExecutor()

	// --- Act ---
	graph := runGraphWithContext(ctx, t, fake,
		simpleJob("a", nil, "cmd-a"),
		simpleJob("b", []string{"a"}, "cmd-b"),
	)

	// --- Assert ---
	// The root is canceled; everything downstream is skipped. Nothing
	// deadlocks and nothing executes.
	require.Equal(t, node.Canceled, graph.Nodes["job.a"].Outcome())
	require.Equal(t, node.Skipped, graph.Nodes["job.b"].Outcome())
	require.Empty(t, fake.Calls())
}

func TestRun_StepEnvReachesExecutor(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeExecutor()
	j := &config.Job{Name: "a", Required: true, Steps: []*config.Step{
		{Name: "env", Run: "env-cmd", Env: map[string]string{"FOO": "bar"}},
	}}

	runGraph(t, fake, j)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	require.Contains(t, calls[0].Env, "FOO=bar")
}
