package scan

import (
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-ethos/ethos-r4r/internal/model"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	fail     map[string]error
	results  map[string]model.AnalysisResult
}

func (f *fakeAnalyzer) Analyze(_ context.Context, userkey string) (model.AnalysisResult, model.Profile, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if err, ok := f.fail[userkey]; ok {
		return model.AnalysisResult{}, model.Profile{}, err
	}
	result, ok := f.results[userkey]
	if !ok {
		result = model.AnalysisResult{
			Subject:   userkey,
			Given:     5,
			Received:  4,
			Breakdown: model.ScoreBreakdown{FinalScore: 25},
			RiskLevel: model.RiskLow,
		}
	}
	profile := model.Profile{Userkey: userkey, DisplayName: "User " + userkey, Score: 1200, XP: 500}
	return result, profile, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func readRows(t *testing.T, out string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunnerWritesRowPerSubject(t *testing.T) {
	analyzer := &fakeAnalyzer{results: map[string]model.AnalysisResult{
		"profileId:1": {
			Subject: "profileId:1", Given: 20, Received: 18,
			AvgReciprocalDays: 0.02,
			Breakdown:         model.ScoreBreakdown{FinalScore: 80},
			RiskLevel:         model.RiskHigh,
		},
	}}
	r := NewRunner(analyzer, testLogger(), 2, 0)

	subjects := []Subject{
		{Userkey: "profileId:1", DiscoveryMethod: DiscoverySeed},
		{Userkey: "profileId:2", DiscoveryMethod: DiscoverySeedFile},
	}
	var out strings.Builder
	summary, err := r.Run(context.Background(), subjects, &out)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.HighRisk)

	rows := readRows(t, out.String())
	require.Len(t, rows, 3)
	assert.Equal(t, reportHeader, rows[0])

	byKey := make(map[string][]string)
	for _, row := range rows[1:] {
		require.Len(t, row, len(reportHeader))
		byKey[row[2]] = row
	}
	high := byKey["profileId:1"]
	require.NotNil(t, high)
	assert.Equal(t, "80", high[3])
	assert.Equal(t, "1200", high[4])
	assert.Equal(t, "500", high[5])
	assert.Equal(t, "high", high[6])
	assert.Equal(t, "20", high[7])
	assert.Equal(t, "18", high[8])
	assert.Equal(t, "0.0200", high[9])
	assert.Equal(t, StatusOK, high[11])
	assert.Equal(t, DiscoverySeed, high[13])
}

func TestRunnerFailureDoesNotAbortBatch(t *testing.T) {
	analyzer := &fakeAnalyzer{fail: map[string]error{
		"profileId:2": errors.New("upstream down"),
	}}
	r := NewRunner(analyzer, testLogger(), 1, 0)

	subjects := []Subject{
		{Userkey: "profileId:1", DiscoveryMethod: DiscoverySeed},
		{Userkey: "profileId:2", DiscoveryMethod: DiscoverySeed},
		{Userkey: "profileId:3", DiscoveryMethod: DiscoverySeed},
	}
	var out strings.Builder
	summary, err := r.Run(context.Background(), subjects, &out)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Failed)

	rows := readRows(t, out.String())
	require.Len(t, rows, 4)
	var failed []string
	for _, row := range rows[1:] {
		if row[11] == StatusFailed {
			failed = row
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "profileId:2", failed[2])
	assert.Contains(t, failed[12], "upstream down")
	assert.Empty(t, failed[3])
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	r := NewRunner(analyzer, testLogger(), 2, 0)

	subjects := make([]Subject, 8)
	for i := range subjects {
		subjects[i] = Subject{Userkey: "profileId:" + string(rune('a'+i)), DiscoveryMethod: DiscoverySeed}
	}
	var out strings.Builder
	_, err := r.Run(context.Background(), subjects, &out)
	require.NoError(t, err)

	analyzer.mu.Lock()
	defer analyzer.mu.Unlock()
	assert.LessOrEqual(t, analyzer.maxSeen, 2)
}

func TestRunnerHonorsCancellation(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	r := NewRunner(analyzer, testLogger(), 1, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	subjects := []Subject{
		{Userkey: "profileId:1", DiscoveryMethod: DiscoverySeed},
		{Userkey: "profileId:2", DiscoveryMethod: DiscoverySeed},
	}
	var out strings.Builder
	summary, _ := r.Run(ctx, subjects, &out)
	assert.Equal(t, 2, summary.Total)

	rows := readRows(t, out.String())
	assert.LessOrEqual(t, len(rows), 2)
}

func TestSeedSubjectsDeduplicates(t *testing.T) {
	cfg := &Config{Subjects: SubjectsConfig{
		Seed: []string{"profileId:1", " profileId:2 ", "profileId:1", ""},
	}}
	subjects, err := cfg.SeedSubjects()
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "profileId:1", subjects[0].Userkey)
	assert.Equal(t, "profileId:2", subjects[1].Userkey)
	assert.Equal(t, DiscoverySeed, subjects[0].DiscoveryMethod)
}

func TestSeedSubjectsFromFile(t *testing.T) {
	path := t.TempDir() + "/seeds.txt"
	content := "profileId:10\n# comment\nprofileId:11\n\nprofileId:10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := &Config{Subjects: SubjectsConfig{
		Seed:     []string{"profileId:10"},
		SeedFile: path,
	}}
	subjects, err := cfg.SeedSubjects()
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, DiscoverySeed, subjects[0].DiscoveryMethod)
	assert.Equal(t, "profileId:11", subjects[1].Userkey)
	assert.Equal(t, DiscoverySeedFile, subjects[1].DiscoveryMethod)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Subjects: SubjectsConfig{Seed: []string{"profileId:1"}},
		Runner:   RunnerConfig{Concurrency: 3, Delay: time.Second},
		Ethos:    EthosConfig{BaseURL: "https://api.ethos.network"},
		Output:   OutputConfig{Path: "./out.csv"},
	}
	require.NoError(t, valid.Validate())

	noSubjects := valid
	noSubjects.Subjects = SubjectsConfig{}
	assert.Error(t, noSubjects.Validate())

	rescanNoDB := valid
	rescanNoDB.Subjects = SubjectsConfig{RescanLeaderboard: true}
	assert.Error(t, rescanNoDB.Validate())

	badConcurrency := valid
	badConcurrency.Runner.Concurrency = 0
	assert.Error(t, badConcurrency.Validate())

	noOutput := valid
	noOutput.Output.Path = ""
	assert.Error(t, noOutput.Validate())
}
