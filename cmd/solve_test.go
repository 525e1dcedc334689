package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSolve(t *testing.T) {
	{ // Test the built in homogeneous benchmark
		var out, log bytes.Buffer
		require.NoError(t, RunSolve(SolveOptions{Threads: 2}, &out, &log))
		assert.Contains(t, out.String(), "keff = 1.43260")
		assert.Contains(t, out.String(), "state = Converged")
		assert.Contains(t, out.String(), "Alloc =")
		assert.Contains(t, log.String(), "run=")
		assert.Contains(t, log.String(), "converged")
		assert.False(t, strings.Contains(log.String(), "source iteration"))
	}
	{ // Test an input file with verbose logging and instruction counting
		fileInput := []byte(`
Title: "Vacuum pin"
Solver:
  MaxIterations: 300
Tracks:
  NumAzim: 4
  Spacing: 0.05
  NumPolar: 2
PinCell:
  Pitch: 1.26
  FuelRadius: 0.54
  FuelRings: 1
  BC: vacuum
  Fuel: 1
  Moderator: 2
Materials:
  1:
    SigmaA: [0.1]
    SigmaF: [0.06]
    NuSigmaF: [0.15]
    Chi: [1]
    SigmaS: [[0.3]]
  2:
    SigmaA: [0.01]
    SigmaF: [0]
    NuSigmaF: [0]
    Chi: [0]
    SigmaS: [[0.5]]
`)
		file := filepath.Join(t.TempDir(), "pin.yaml")
		require.NoError(t, os.WriteFile(file, fileInput, 0o644))
		var out, log bytes.Buffer
		require.NoError(t, RunSolve(SolveOptions{InputFile: file, Verbose: true, Perf: true}, &out, &log))
		assert.Contains(t, out.String(), "\"Vacuum pin\"")
		assert.Contains(t, out.String(), "phi[0]")
		assert.Contains(t, log.String(), "source iteration")
		assert.Contains(t, log.String(), "pin cell built")
	}
	{ // Test bad options
		var out, log bytes.Buffer
		assert.Error(t, RunSolve(SolveOptions{InputFile: filepath.Join(t.TempDir(), "missing.yaml")}, &out, &log))
		assert.Error(t, RunSolve(SolveOptions{Profile: "gpu"}, &out, &log))
	}
}
