package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nosqlbench/vsmodel/pkg/config"
	"github.com/nosqlbench/vsmodel/pkg/model"
)

func writeFixture(t *testing.T, dir string, vectorCount, dimension int) string {
	t.Helper()

	rng := rand.New(rand.NewSource(1))

	vectors := make([][]float32, vectorCount)
	for i := range vectors {
		row := make([]float32, dimension)
		for d := range row {
			row[d] = float32(rng.NormFloat64())
		}

		vectors[i] = row
	}

	raw, err := json.Marshal(jsonVectorFile{Dimension: dimension, Vectors: vectors})
	require.NoError(t, err)

	path := filepath.Join(dir, "vectors.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	return path
}

func writeRelaxedConfig(t *testing.T, dir string) string {
	t.Helper()

	const yaml = `
model:
  reservoir_size: 1000
  max_components: 2
  clustering_strategy: HARD
parallelism:
  parallelism: 1
  numa_aware: false
`

	path := filepath.Join(dir, "vsmodel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	return path
}

func TestLoadJSONVectors_RoundTrips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFixture(t, dir, 10, 3)

	vectors, err := loadJSONVectors(path)
	require.NoError(t, err)
	require.Len(t, vectors, 10)
	require.Len(t, vectors[0], 3)
}

func TestLoadJSONVectors_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := loadJSONVectors(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestRunRun_ProducesManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inputPath := writeFixture(t, dir, 1200, 2)
	configPath := writeRelaxedConfig(t, dir)
	outputPath := filepath.Join(dir, "model.json")

	opts := &runOptions{
		inputPath:  inputPath,
		outputPath: outputPath,
		configFile: configPath,
		runID:      "test-run",
		workers:    1,
		logFormat:  "text",
		silent:     true,
	}

	require.NoError(t, runRun(context.Background(), opts))

	manifest, err := model.LoadManifest(outputPath)
	require.NoError(t, err)
	require.Equal(t, uint32(2), manifest.Shape.Dimensionality)
	require.Len(t, manifest.PerDimModels, 2)
}

func TestDownloadRemoteInput_FetchesFileThroughRateLimiter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFixture(t, dir, 50, 2)
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "vectors.json", time.Time{}, bytes.NewReader(content))
	}))
	t.Cleanup(srv.Close)

	downloadedPath, err := downloadRemoteInput(context.Background(), srv.URL, config.Transport{MaxBytesPerSec: 1 << 20})
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(downloadedPath) })

	got, err := os.ReadFile(downloadedPath)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestRunRun_DownloadsRemoteInputBeforeFitting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inputPath := writeFixture(t, dir, 1200, 2)
	configPath := writeRelaxedConfig(t, dir)
	outputPath := filepath.Join(dir, "model.json")

	content, err := os.ReadFile(inputPath)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "vectors.json", time.Time{}, bytes.NewReader(content))
	}))
	t.Cleanup(srv.Close)

	opts := &runOptions{
		remoteURL:  srv.URL,
		outputPath: outputPath,
		configFile: configPath,
		runID:      "test-run",
		workers:    1,
		logFormat:  "text",
		silent:     true,
	}

	require.NoError(t, runRun(context.Background(), opts))

	manifest, err := model.LoadManifest(outputPath)
	require.NoError(t, err)
	require.Equal(t, uint32(2), manifest.Shape.Dimensionality)
}

func TestRunRun_RejectsMissingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	opts := &runOptions{
		inputPath:  filepath.Join(dir, "missing.json"),
		outputPath: filepath.Join(dir, "model.json"),
		runID:      "test-run",
		silent:     true,
	}

	require.Error(t, runRun(context.Background(), opts))
}
