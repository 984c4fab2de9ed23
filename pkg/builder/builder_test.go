package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
)

func newTestUnit(t *testing.T, command []string) schemas.Unit {
	t.Helper()

	u := schemas.NewUnit("test-unit")
	u.SourceDir = t.TempDir()
	u.Build.Command = command
	u.Build.OutputDir = "dist"
	u.Build.TimeoutSeconds = 30

	return u
}

func TestBuildCollectsArtifacts(t *testing.T) {
	u := newTestUnit(t, []string{
		"sh", "-c", "mkdir -p dist && echo wheel > dist/pkg-1.0.0-py3-none-any.whl && echo sdist > dist/pkg-1.0.0.tar.gz",
	})

	artifacts, err := NewExecBuilder().Build(context.Background(), u)
	assert.NoError(t, err)
	assert.Equal(t, 2, artifacts.Count())

	// The set ordering is deterministic
	assert.Equal(t, "pkg-1.0.0-py3-none-any.whl", artifacts[0].Filename)
	assert.Equal(t, "pkg-1.0.0.tar.gz", artifacts[1].Filename)
	assert.Greater(t, artifacts.TotalSizeBytes(), int64(0))
}

func TestBuildFailureLeavesNoArtifacts(t *testing.T) {
	u := newTestUnit(t, []string{
		"sh", "-c", "mkdir -p dist && echo partial > dist/partial.whl && exit 1",
	})

	artifacts, err := NewExecBuilder().Build(context.Background(), u)
	assert.Error(t, err)
	assert.Empty(t, artifacts)

	// The partial output must have been removed
	_, statErr := os.Stat(filepath.Join(u.SourceDir, "dist"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuildEmptyOutputIsAnError(t *testing.T) {
	u := newTestUnit(t, []string{"sh", "-c", "mkdir -p dist"})

	_, err := NewExecBuilder().Build(context.Background(), u)
	assert.Error(t, err)
}

func TestBuildMissingSourceDir(t *testing.T) {
	u := schemas.NewUnit("missing")
	u.SourceDir = "/does/not/exist"
	u.Build.Command = []string{"true"}
	u.Build.TimeoutSeconds = 30

	_, err := NewExecBuilder().Build(context.Background(), u)
	assert.Error(t, err)
}

func TestBuildNoCommand(t *testing.T) {
	u := newTestUnit(t, nil)

	_, err := NewExecBuilder().Build(context.Background(), u)
	assert.Error(t, err)
}

func TestBuildEnvPropagation(t *testing.T) {
	u := newTestUnit(t, []string{
		"sh", "-c", "mkdir -p dist && echo \"$RELEASE_FLAVOR\" > dist/flavor.txt",
	})
	u.Build.Env = map[string]string{"RELEASE_FLAVOR": "stable"}

	artifacts, err := NewExecBuilder().Build(context.Background(), u)
	assert.NoError(t, err)
	assert.Equal(t, 1, artifacts.Count())

	content, err := os.ReadFile(artifacts[0].Path)
	assert.NoError(t, err)
	assert.Equal(t, "stable\n", string(content))
}

func TestCleanup(t *testing.T) {
	u := newTestUnit(t, []string{
		"sh", "-c", "mkdir -p dist && echo wheel > dist/pkg.whl",
	})

	artifacts, err := NewExecBuilder().Build(context.Background(), u)
	assert.NoError(t, err)

	assert.NoError(t, Cleanup(artifacts))

	_, statErr := os.Stat(artifacts[0].Path)
	assert.True(t, os.IsNotExist(statErr))

	// Cleaning up twice is harmless
	assert.NoError(t, Cleanup(artifacts))
}
