package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/actuallystonmai/dineright-service/internal/domain"
)

// writeWorker writes a shell script standing in for the recommendation worker.
func writeWorker(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell workers need /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "worker.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newTestBridge(t *testing.T, script string, mutate ...func(*Config)) *Bridge {
	t.Helper()
	cfg := Config{
		InterpreterPath: "/bin/sh",
		ScriptPath:      script,
		ResultLimit:     10,
		ResultsKey:      "results",
		Timeout:         5 * time.Second,
		WaitDelay:       500 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	b := NewBridge(cfg, zaptest.NewLogger(t))
	t.Cleanup(func() { b.Close() })
	return b
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return strings.Fields(string(data))
}

func TestGetRecommendationsPreservesWorkerOrder(t *testing.T) {
	script := writeWorker(t, `cat > /dev/null
printf '{"results": [7, 3, 9]}'`)
	b := newTestBridge(t, script)

	ids, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 3, 9}, ids)
	assert.Equal(t, StateExited, b.State())
}

func TestGetRecommendationsWritesRequestDocument(t *testing.T) {
	dir := t.TempDir()
	captured := filepath.Join(dir, "request.json")
	script := writeWorker(t, `cat > "`+captured+`"
printf '{"results": []}'`)
	b := newTestBridge(t, script)

	t.Run("empty facets send only n", func(t *testing.T) {
		ids, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.NotNil(t, ids)

		var doc map[string]any
		data, err := os.ReadFile(captured)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, map[string]any{"n": float64(10)}, doc)
	})

	t.Run("explicit limit and facets are sent", func(t *testing.T) {
		radius, budget := 5, 2
		_, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{
			Location:     "Cork",
			RadiusKm:     &radius,
			BudgetLevel:  &budget,
			CuisineTypes: []string{"Thai", "Irish"},
			ResultLimit:  3,
		})
		require.NoError(t, err)

		var doc map[string]any
		data, err := os.ReadFile(captured)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "Cork", doc["address"])
		assert.Equal(t, float64(5), doc["radius_km"])
		assert.Equal(t, float64(2), doc["budget_filter"])
		assert.Equal(t, []any{"Thai", "Irish"}, doc["cuisine_type"])
		assert.Equal(t, float64(3), doc["n"])
		assert.NotContains(t, doc, "amenities_filter")
	})
}

func TestGetRecommendationsProtocolFailures(t *testing.T) {
	cases := []struct {
		name   string
		script string
	}{
		{"no output", `cat > /dev/null`},
		{"not json", `cat > /dev/null
echo 'Traceback (most recent call last):'`},
		{"missing results key", `cat > /dev/null
printf '{"place_ids": [1, 2]}'`},
		{"null results", `cat > /dev/null
printf '{"results": null}'`},
		{"wrong element type", `cat > /dev/null
printf '{"results": ["a", "b"]}'`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBridge(t, writeWorker(t, tc.script))

			ids, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
			require.Error(t, err)
			assert.Empty(t, ids)
			assert.Equal(t, ProtocolFailure, KindOf(err))
			assert.True(t, IsModelInferenceError(err))
		})
	}
}

func TestGetRecommendationsCapturesStderr(t *testing.T) {
	script := writeWorker(t, `cat > /dev/null
echo "model file missing" >&2
exit 3`)
	b := newTestBridge(t, script)

	_, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	require.Error(t, err)

	var modelErr *Error
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, ProtocolFailure, modelErr.Kind)
	assert.Contains(t, modelErr.Stderr, "model file missing")
}

func TestGetRecommendationsAcceptsOutputDespiteExitCode(t *testing.T) {
	script := writeWorker(t, `cat > /dev/null
echo "warning: deprecated" >&2
printf '{"results": [4]}'
exit 1`)
	b := newTestBridge(t, script)

	ids, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids)
}

func TestGetRecommendationsSpawnFailure(t *testing.T) {
	b := newTestBridge(t, "inference.py", func(c *Config) {
		c.InterpreterPath = filepath.Join(t.TempDir(), "no-such-python")
	})

	ids, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	require.Error(t, err)
	assert.Nil(t, ids)
	assert.Equal(t, SpawnFailure, KindOf(err))
	assert.Equal(t, StateExited, b.State())
}

func TestGetRecommendationsSpawnsOneWorkerPerCycle(t *testing.T) {
	spawnLog := filepath.Join(t.TempDir(), "spawns.log")
	script := writeWorker(t, `echo spawn >> "`+spawnLog+`"
cat > /dev/null
printf '{"results": [1]}'`)
	b := newTestBridge(t, script)
	assert.Equal(t, StateNotStarted, b.State())

	for i := 1; i <= 3; i++ {
		_, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
		require.NoError(t, err)
		assert.Len(t, readLines(t, spawnLog), i)
	}
}

func TestGetRecommendationsRespawnsCrashedWorker(t *testing.T) {
	spawnLog := filepath.Join(t.TempDir(), "spawns.log")
	script := writeWorker(t, `echo spawn >> "`+spawnLog+`"
cat > /dev/null
printf '{"results": [5, 6]}'`)
	b := newTestBridge(t, script)

	require.NoError(t, b.Start(context.Background()))
	assert.Equal(t, StateRunning, b.State())

	b.mu.Lock()
	w := b.current
	b.mu.Unlock()
	require.NotNil(t, w)
	require.NoError(t, w.cmd.Process.Kill())
	<-w.done
	assert.Equal(t, StateExited, b.State())

	ids, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, ids)
	assert.Len(t, readLines(t, spawnLog), 2)
}

func TestGetRecommendationsReusesPrewarmedWorker(t *testing.T) {
	spawnLog := filepath.Join(t.TempDir(), "spawns.log")
	script := writeWorker(t, `echo spawn >> "`+spawnLog+`"
cat > /dev/null
printf '{"results": [2]}'`)
	b := newTestBridge(t, script, func(c *Config) { c.Prewarm = true })

	_, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(readLines(t, spawnLog)) == 2 && b.State() == StateRunning
	}, 5*time.Second, 20*time.Millisecond)

	_, err = b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	require.NoError(t, err)

	// the second cycle used the prewarmed worker, then prewarmed a third
	require.Eventually(t, func() bool {
		return len(readLines(t, spawnLog)) == 3
	}, 5*time.Second, 20*time.Millisecond)
}

func TestGetRecommendationsSerializesConcurrentCalls(t *testing.T) {
	events := filepath.Join(t.TempDir(), "events.log")
	script := writeWorker(t, `echo spawn >> "`+events+`"
cat > /dev/null
echo start >> "`+events+`"
sleep 0.2
echo end >> "`+events+`"
printf '{"results": [1, 2]}'`)
	b := newTestBridge(t, script)

	const callers = 3
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
			if err == nil && len(ids) != 2 {
				err = errors.New("unexpected result")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	want := make([]string, 0, callers*3)
	for i := 0; i < callers; i++ {
		want = append(want, "spawn", "start", "end")
	}
	assert.Equal(t, want, readLines(t, events))
}

func TestGetRecommendationsTimeoutKillsWorker(t *testing.T) {
	script := writeWorker(t, `cat > /dev/null
exec sleep 10`)
	b := newTestBridge(t, script, func(c *Config) {
		c.Timeout = 200 * time.Millisecond
		c.WaitDelay = 100 * time.Millisecond
	})

	start := time.Now()
	ids, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	require.Error(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, TimeoutFailure, KindOf(err))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateExited, b.State())
}

func TestGetRecommendationsHonoursContext(t *testing.T) {
	script := writeWorker(t, `cat > /dev/null
exec sleep 10`)
	b := newTestBridge(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := b.GetRecommendations(ctx, domain.RecommendationRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsModelInferenceError(err))
}

func TestGetRecommendationsRejectsOversizedOutput(t *testing.T) {
	script := writeWorker(t, `cat > /dev/null
printf '{"results": [1, 2, 3, 4, 5, 6, 7, 8, 9, 10]}'`)
	b := newTestBridge(t, script, func(c *Config) { c.MaxOutputBytes = 16 })

	_, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	require.Error(t, err)
	assert.Equal(t, ProtocolFailure, KindOf(err))
	assert.ErrorContains(t, err, "exceeds 16 bytes")
}

func TestCloseRejectsFurtherRequests(t *testing.T) {
	script := writeWorker(t, `cat > /dev/null
printf '{"results": [1]}'`)
	b := newTestBridge(t, script)

	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, SpawnFailure, KindOf(err))
}

func TestPrometheusMetricsRecordCycles(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics("test", reg)

	ok := writeWorker(t, `cat > /dev/null
printf '{"results": [1, 2, 3]}'`)
	b := NewBridge(Config{
		InterpreterPath: "/bin/sh",
		ScriptPath:      ok,
		ResultsKey:      "results",
	}, zaptest.NewLogger(t), WithMetricsCollector(metrics))
	defer b.Close()

	_, err := b.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	require.NoError(t, err)

	bad := NewBridge(Config{
		InterpreterPath: "/bin/sh",
		ScriptPath:      writeWorker(t, `cat > /dev/null`),
		ResultsKey:      "results",
	}, zaptest.NewLogger(t), WithMetricsCollector(metrics))
	defer bad.Close()

	_, err = bad.GetRecommendations(context.Background(), domain.RecommendationRequest{})
	require.Error(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.spawns))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cycles.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cycles.WithLabelValues("protocol_failure")))
}
