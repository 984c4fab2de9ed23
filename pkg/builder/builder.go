package builder

import (
	"bytes"
	"context" // Package for managing context and cancellation
	"fmt"
	"os"
	"os/exec" // Package for running the configured build commands
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"         // Error wrapping library
	log "github.com/sirupsen/logrus" // Logging library

	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
)

// maxOutputTailBytes bounds how much of the build command output is kept in error messages.
const maxOutputTailBytes = 2048

// Builder produces the distributable artifacts of a release unit.
type Builder interface {
	// Build runs the unit's build in its source directory and returns the
	// produced artifact set. A failed build returns no artifacts at all.
	Build(ctx context.Context, unit schemas.Unit) (schemas.ArtifactSet, error)
}

// Exec is a Builder implementation which executes the unit's configured build command.
type Exec struct{}

// NewExecBuilder returns a Builder running the configured build commands as subprocesses.
func NewExecBuilder() Builder {
	return Exec{}
}

// Build executes the unit's build command inside its source directory and collects
// the artifact files from the unit's output directory.
// The operation is all-or-nothing: on any failure the output directory is removed
// so no partial artifact set can escape.
func (b Exec) Build(ctx context.Context, unit schemas.Unit) (artifacts schemas.ArtifactSet, err error) {
	if len(unit.Build.Command) == 0 {
		return nil, fmt.Errorf("unit %s has no build command configured", unit.Name)
	}

	// Ensure the source directory exists before attempting anything
	if _, err = os.Stat(unit.SourceDir); err != nil {
		return nil, errors.Wrapf(err, "unit %s source directory", unit.Name)
	}

	outputDir := filepath.Join(unit.SourceDir, unit.Build.OutputDir)

	// Drop any leftovers from a previous build so only freshly produced
	// files end up in the artifact set
	if err = os.RemoveAll(outputDir); err != nil {
		return nil, errors.Wrapf(err, "unit %s output directory cleanup", unit.Name)
	}

	// Bound the execution time of the build command
	buildCtx, cancel := context.WithTimeout(ctx, time.Duration(unit.Build.TimeoutSeconds)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(buildCtx, unit.Build.Command[0], unit.Build.Command[1:]...) //nolint:gosec
	cmd.Dir = unit.SourceDir

	// Export the additional environment variables configured for the build
	cmd.Env = os.Environ()
	for k, v := range unit.Build.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	log.WithFields(log.Fields{
		"unit":    unit.Name,
		"command": unit.Build.Command,
	}).Debug("running build command")

	if err = cmd.Run(); err != nil {
		// Remove whatever the failed build may have produced
		_ = os.RemoveAll(outputDir)

		return nil, errors.Wrapf(err, "unit %s build command failed: %s", unit.Name, outputTail(output.Bytes()))
	}

	artifacts, err = collectArtifacts(outputDir)
	if err != nil {
		_ = os.RemoveAll(outputDir)

		return nil, errors.Wrapf(err, "unit %s", unit.Name)
	}

	log.WithFields(log.Fields{
		"unit":      unit.Name,
		"artifacts": artifacts.Count(),
	}).Debug("build command completed")

	return
}

// collectArtifacts lists the regular files produced in the output directory
// and returns them as an ordered artifact set.
func collectArtifacts(outputDir string) (artifacts schemas.ArtifactSet, err error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, errors.Wrap(err, "reading output directory")
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return nil, errors.Wrap(infoErr, "reading artifact file info")
		}

		artifacts = append(artifacts, schemas.Artifact{
			Filename:  entry.Name(),
			Path:      filepath.Join(outputDir, entry.Name()),
			SizeBytes: info.Size(),
		})
	}

	// A build which produces nothing is a failed build
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("build produced no artifacts in %s", outputDir)
	}

	// Keep the set ordering deterministic
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Filename < artifacts[j].Filename
	})

	return
}

// Cleanup removes the artifact files of the set from disk once the owning
// unit's publish attempt has completed.
func Cleanup(artifacts schemas.ArtifactSet) error {
	for _, a := range artifacts {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing artifact %s", a.Filename)
		}
	}

	return nil
}

// outputTail returns the last part of the build command output, bounded to
// keep error messages readable.
func outputTail(output []byte) string {
	if len(output) > maxOutputTailBytes {
		output = output[len(output)-maxOutputTailBytes:]
	}

	return string(bytes.TrimSpace(output))
}
