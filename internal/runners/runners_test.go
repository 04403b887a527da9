package runners

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/gridrun/internal/config"
)

func TestNewPool_DefaultsToLocalRunner(t *testing.T) {
	t.Parallel()

	pool := NewPool(nil)

	r, err := pool.Select([]string{"local"})
	require.NoError(t, err)
	require.Equal(t, "local", r.Name)
	require.Contains(t, r.Labels, runtime.GOOS)
	require.Contains(t, r.Labels, runtime.GOARCH)
}

func TestSelect_EmptyConstraintMatchesFirstRunner(t *testing.T) {
	t.Parallel()

	pool := NewPool(nil)

	r, err := pool.Select(nil)
	require.NoError(t, err)
	require.Equal(t, "local", r.Name)
}

func TestSelect_AllLabelsMustBeCovered(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	pool := NewPool(map[string]*config.RunnerDef{
		"big": {Name: "big", Labels: []string{"linux", "gpu"}},
	})

	// --- Act / Assert ---
	r, err := pool.Select([]string{"linux", "gpu"})
	require.NoError(t, err)
	require.Equal(t, "big", r.Name)

	_, err = pool.Select([]string{"linux", "gpu", "arm64"})
	require.Error(t, err)
}

func TestSelect_NoMatchReturnsSelectionError(t *testing.T) {
	t.Parallel()

	pool := NewPool(nil)

	_, err := pool.Select([]string{"windows"})

	var selErr *SelectionError
	require.ErrorAs(t, err, &selErr)
	require.Equal(t, []string{"windows"}, selErr.Constraint)
	require.Contains(t, selErr.Error(), "windows")
}

func TestNewPool_RunnerEnvIsFlattenedAndSorted(t *testing.T) {
	t.Parallel()

	pool := NewPool(map[string]*config.RunnerDef{
		"r": {
			Name:   "r",
			Labels: []string{"custom"},
			Env:    map[string]string{"B": "2", "A": "1"},
		},
	})

	r, err := pool.Select([]string{"custom"})
	require.NoError(t, err)
	require.Equal(t, []string{"A=1", "B=2"}, r.Env)
}
