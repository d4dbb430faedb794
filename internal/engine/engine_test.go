package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/abbasaisolutions/sygnify-sub002/internal/analysis"
	"github.com/abbasaisolutions/sygnify-sub002/internal/checkpoint"
	"github.com/abbasaisolutions/sygnify-sub002/internal/config"
	"github.com/abbasaisolutions/sygnify-sub002/internal/schema"
	"github.com/abbasaisolutions/sygnify-sub002/internal/source"
	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

// makeRecords builds a deterministic dataset with a monotonic id, an
// amount column and a low-cardinality region column.
func makeRecords(n int) []records.Record {
	regions := []string{"north", "south", "east", "west"}
	recs := make([]records.Record, n)
	for i := 0; i < n; i++ {
		recs[i] = records.Record{
			"id":     fmt.Sprintf("%d", i+1),
			"amount": fmt.Sprintf("%d.50", 100+i%37),
			"region": regions[i%len(regions)],
		}
	}
	return recs
}

// TestRunRecords_ChunkAccounting verifies 25,000 records at chunk size
// 10,000 process as exactly three chunks with monotonic progress.
func TestRunRecords_ChunkAccounting(t *testing.T) {
	t.Parallel()

	var progressed []Progress
	e := New(config.Processing{ChunkSize: 10000}, WithProgress(func(p Progress) {
		progressed = append(progressed, p)
	}))

	res, err := e.RunRecords(context.Background(), makeRecords(25000))
	if err != nil {
		t.Fatalf("RunRecords: %v", err)
	}

	if res.Strategy != config.StrategyChunking {
		t.Fatalf("Strategy=%q, want chunking", res.Strategy)
	}
	if res.ChunkCount != 3 {
		t.Fatalf("ChunkCount=%d, want 3", res.ChunkCount)
	}
	if res.RecordCount != 25000 {
		t.Fatalf("RecordCount=%d, want 25000", res.RecordCount)
	}

	wantRecords := []int{10000, 20000, 25000}
	if len(progressed) != 3 {
		t.Fatalf("progress calls=%d, want 3", len(progressed))
	}
	for i, p := range progressed {
		if p.Chunks != i+1 || p.Records != wantRecords[i] {
			t.Fatalf("progress[%d]=%+v, want chunks=%d records=%d", i, p, i+1, wantRecords[i])
		}
	}
}

// TestRunRecords_EmptyDataset verifies the empty input sentinel.
func TestRunRecords_EmptyDataset(t *testing.T) {
	t.Parallel()

	e := New(config.Processing{})
	_, err := e.RunRecords(context.Background(), nil)
	if !errors.Is(err, schema.ErrEmptyDataset) {
		t.Fatalf("err=%v, want ErrEmptyDataset", err)
	}
}

// TestRunRecords_ProfileAndAnalysis verifies the result carries a typed
// profile, column analyses and forecasts for the amount column.
func TestRunRecords_ProfileAndAnalysis(t *testing.T) {
	t.Parallel()

	e := New(config.Processing{})
	res, err := e.RunRecords(context.Background(), makeRecords(500))
	if err != nil {
		t.Fatalf("RunRecords: %v", err)
	}

	if res.Profile.RowCount != 500 || res.Profile.ColumnCount != 3 {
		t.Fatalf("profile rows=%d cols=%d, want 500/3", res.Profile.RowCount, res.Profile.ColumnCount)
	}
	amount, ok := res.Profile.Columns["amount"]
	if !ok {
		t.Fatal("profile missing amount column")
	}
	if amount.Type != schema.KindCurrency {
		t.Fatalf("amount type=%q, want currency (name override)", amount.Type)
	}

	ca, ok := res.Report.Columns["amount"]
	if !ok || ca.Class != analysis.ClassAmount {
		t.Fatalf("amount analysis=%+v, want amount class", ca)
	}
	if ca.Stats == nil || ca.Stats.Count == 0 {
		t.Fatal("amount stats missing")
	}

	if _, ok := res.Forecast["amount"]; !ok {
		t.Fatalf("forecast missing amount; got %v", res.Forecast)
	}
	if len(res.Report.Insights) == 0 {
		t.Fatal("insights must never be empty")
	}
}

// TestRunRecords_ForecastFilter verifies cfg.Forecast restricts which
// metric columns are forecast.
func TestRunRecords_ForecastFilter(t *testing.T) {
	t.Parallel()

	recs := makeRecords(100)
	for i, r := range recs {
		r["cost"] = fmt.Sprintf("%d", 50+i)
	}

	e := New(config.Processing{Forecast: []string{"cost"}})
	res, err := e.RunRecords(context.Background(), recs)
	if err != nil {
		t.Fatalf("RunRecords: %v", err)
	}
	if _, ok := res.Forecast["cost"]; !ok {
		t.Fatalf("forecast missing cost; got %v", res.Forecast)
	}
	if _, ok := res.Forecast["amount"]; ok {
		t.Fatal("amount forecast present despite filter")
	}
}

// TestMemoryWatchdog verifies the advisory ceiling produces warnings and
// counters through the injected memory reader, without failing the run.
func TestMemoryWatchdog(t *testing.T) {
	t.Parallel()

	e := New(config.Processing{ChunkSize: 100, MemoryLimitMB: 1})
	e.readMemStats = func(ms *runtime.MemStats) {
		ms.HeapAlloc = 10 * 1024 * 1024
	}

	res, err := e.RunRecords(context.Background(), makeRecords(250))
	if err != nil {
		t.Fatalf("RunRecords: %v", err)
	}
	if res.Memory.Exceeded != 3 {
		t.Fatalf("Exceeded=%d, want 3 (one per chunk)", res.Memory.Exceeded)
	}
	if len(res.Warnings) != 3 {
		t.Fatalf("warnings=%d, want 3", len(res.Warnings))
	}
	if res.Memory.PeakHeapAllocMB != 10 {
		t.Fatalf("PeakHeapAllocMB=%v, want 10", res.Memory.PeakHeapAllocMB)
	}
}

// TestRunParallel_MatchesSequential verifies the parallel strategy sees
// every record and produces the same column set as chunking.
func TestRunParallel_MatchesSequential(t *testing.T) {
	t.Parallel()

	recs := makeRecords(4000)

	seqRes, err := New(config.Processing{Strategy: config.StrategyChunking}).RunRecords(context.Background(), recs)
	if err != nil {
		t.Fatalf("sequential run: %v", err)
	}

	parRes, err := New(config.Processing{Strategy: config.StrategyParallel, Workers: 4}).RunRecords(context.Background(), recs)
	if err != nil {
		t.Fatalf("parallel run: %v", err)
	}

	if parRes.Strategy != config.StrategyParallel {
		t.Fatalf("Strategy=%q, want parallel", parRes.Strategy)
	}
	if parRes.RecordCount != 4000 || parRes.ChunkCount != 4 {
		t.Fatalf("records=%d chunks=%d, want 4000/4", parRes.RecordCount, parRes.ChunkCount)
	}
	if parRes.DroppedPartitions != 0 {
		t.Fatalf("DroppedPartitions=%d, want 0", parRes.DroppedPartitions)
	}

	if len(parRes.Report.Columns) != len(seqRes.Report.Columns) {
		t.Fatalf("parallel columns=%d, sequential=%d", len(parRes.Report.Columns), len(seqRes.Report.Columns))
	}
	seqAmount := seqRes.Report.Columns["amount"]
	parAmount := parRes.Report.Columns["amount"]
	if parAmount.Stats.Count != seqAmount.Stats.Count || parAmount.Stats.Sum != seqAmount.Stats.Sum {
		t.Fatalf("parallel amount stats %+v differ from sequential %+v", parAmount.Stats, seqAmount.Stats)
	}
}

// TestPartition verifies contiguous non-overlapping spans.
func TestPartition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, k int
		want [][2]int
	}{
		{n: 0, k: 4, want: nil},
		{n: 3, k: 4, want: [][2]int{{0, 1}, {1, 2}, {2, 3}}},
		{n: 10, k: 3, want: [][2]int{{0, 4}, {4, 7}, {7, 10}}},
		{n: 8, k: 2, want: [][2]int{{0, 4}, {4, 8}}},
	}
	for _, tc := range tests {
		got := partition(tc.n, tc.k)
		if len(got) != len(tc.want) {
			t.Fatalf("partition(%d,%d)=%v, want %v", tc.n, tc.k, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("partition(%d,%d)=%v, want %v", tc.n, tc.k, got, tc.want)
			}
		}
	}
}

// TestRunIncremental_Resume verifies disjoint processing across two runs
// sharing a checkpoint store: the second run only sees keys past the
// first run's checkpoint.
func TestRunIncremental_Resume(t *testing.T) {
	t.Parallel()

	store := checkpoint.NewMemory()
	defer store.Close()

	cfg := config.Processing{
		Job:       "orders",
		Strategy:  config.StrategyIncremental,
		KeyColumn: "id",
		ChunkSize: 4,
	}

	first, err := New(cfg, WithCheckpoints(store)).RunRecords(context.Background(), makeRecords(10))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.RecordCount != 10 {
		t.Fatalf("first RecordCount=%d, want 10", first.RecordCount)
	}
	if first.ChunkCount != 3 {
		t.Fatalf("first ChunkCount=%d, want 3 (4+4+2)", first.ChunkCount)
	}

	cp, found, err := store.Load(context.Background(), "orders")
	if err != nil || !found {
		t.Fatalf("checkpoint after first run: found=%v err=%v", found, err)
	}
	if cp.LastKey != "10" {
		t.Fatalf("LastKey=%q, want 10", cp.LastKey)
	}

	second, err := New(cfg, WithCheckpoints(store)).RunRecords(context.Background(), makeRecords(15))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.RecordCount != 5 {
		t.Fatalf("second RecordCount=%d, want 5 (only keys 11..15)", second.RecordCount)
	}

	cp, _, err = store.Load(context.Background(), "orders")
	if err != nil {
		t.Fatalf("checkpoint after second run: %v", err)
	}
	if cp.LastKey != "15" {
		t.Fatalf("LastKey=%q, want 15", cp.LastKey)
	}
}

// TestRunIncremental_CaughtUp verifies a resume with nothing new returns
// an empty-but-valid result instead of ErrEmptyDataset.
func TestRunIncremental_CaughtUp(t *testing.T) {
	t.Parallel()

	store := checkpoint.NewMemory()
	defer store.Close()

	cfg := config.Processing{
		Job:       "orders",
		Strategy:  config.StrategyIncremental,
		KeyColumn: "id",
	}

	if _, err := New(cfg, WithCheckpoints(store)).RunRecords(context.Background(), makeRecords(10)); err != nil {
		t.Fatalf("first run: %v", err)
	}

	res, err := New(cfg, WithCheckpoints(store)).RunRecords(context.Background(), makeRecords(10))
	if err != nil {
		t.Fatalf("caught-up run: %v", err)
	}
	if res.RecordCount != 0 {
		t.Fatalf("RecordCount=%d, want 0", res.RecordCount)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a caught-up warning")
	}
	if len(res.Report.Insights) == 0 {
		t.Fatal("caught-up result still carries the fallback insight set")
	}
}

// TestRunIncremental_MissingKeyColumn verifies a key column absent from
// the dataset is surfaced as a warning without aborting the run.
func TestRunIncremental_MissingKeyColumn(t *testing.T) {
	t.Parallel()

	cfg := config.Processing{
		Job:       "orders",
		Strategy:  config.StrategyIncremental,
		KeyColumn: "order_id",
	}

	res, err := New(cfg).RunRecords(context.Background(), makeRecords(10))
	if err != nil {
		t.Fatalf("RunRecords: %v", err)
	}
	if res.RecordCount != 10 {
		t.Fatalf("RecordCount=%d, want 10", res.RecordCount)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, `key column "order_id" not found`) {
			found = true
		}
	}
	if !found {
		t.Fatalf("Warnings=%v, want missing key column warning", res.Warnings)
	}
}

// failingStore wraps the memory store and fails every Save.
type failingStore struct {
	*checkpoint.Memory
}

func (f *failingStore) Save(ctx context.Context, cp checkpoint.Checkpoint) (checkpoint.Checkpoint, error) {
	return checkpoint.Checkpoint{}, errors.New("disk full")
}

// TestRunIncremental_CheckpointWriteFailure verifies a failing store
// surfaces on the result without aborting the run.
func TestRunIncremental_CheckpointWriteFailure(t *testing.T) {
	t.Parallel()

	store := &failingStore{Memory: checkpoint.NewMemory()}
	cfg := config.Processing{
		Job:       "orders",
		Strategy:  config.StrategyIncremental,
		KeyColumn: "id",
		ChunkSize: 5,
	}

	res, err := New(cfg, WithCheckpoints(store)).RunRecords(context.Background(), makeRecords(10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RecordCount != 10 {
		t.Fatalf("RecordCount=%d, want 10 (run completes)", res.RecordCount)
	}

	var werr *checkpoint.WriteError
	if !errors.As(res.CheckpointErr, &werr) {
		t.Fatalf("CheckpointErr=%v, want *checkpoint.WriteError", res.CheckpointErr)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("warnings=%d, want 2 (one per failed chunk save)", len(res.Warnings))
	}
}

// TestCompareKeys verifies numeric-aware key ordering.
func TestCompareKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"7", "7", 0},
		{"abc", "abd", -1},
		{"5", "abc", -1}, // numbers before text
		{"", "1", -1},    // keyless first
		{"", "", 0},
	}
	for _, tc := range tests {
		if got := compareKeys(tc.a, tc.b); got != tc.want {
			t.Fatalf("compareKeys(%q,%q)=%d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

// streamStub is a Reader stub for strategy-selection tests.
type streamStub struct {
	singlePass bool
}

func (s *streamStub) Kind() string     { return "stub" }
func (s *streamStub) SinglePass() bool { return s.singlePass }
func (s *streamStub) Stream(ctx context.Context, out chan<- records.Record, onErr func(int, error)) error {
	return nil
}

// TestSelectStrategy verifies auto-resolution precedence.
func TestSelectStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cfg   config.Processing
		r     source.Reader
		known int
		want  string
	}{
		{
			name: "explicit_wins",
			cfg:  config.Processing{Strategy: config.StrategyParallel, Growing: true, KeyColumn: "id"},
			r:    &streamStub{singlePass: true},
			want: config.StrategyParallel,
		},
		{
			name: "growing_keyed_is_incremental",
			cfg:  config.Processing{Growing: true, KeyColumn: "id", CPUIntensive: true},
			r:    &streamStub{},
			want: config.StrategyIncremental,
		},
		{
			name: "cpu_intensive_is_parallel",
			cfg:  config.Processing{CPUIntensive: true},
			r:    &streamStub{singlePass: true},
			want: config.StrategyParallel,
		},
		{
			name: "single_pass_source_streams",
			cfg:  config.Processing{},
			r:    &streamStub{singlePass: true},
			want: config.StrategyStreaming,
		},
		{
			name:  "huge_dataset_streams",
			cfg:   config.Processing{},
			r:     &streamStub{},
			known: 1000001,
			want:  config.StrategyStreaming,
		},
		{
			name:  "default_chunking",
			cfg:   config.Processing{},
			r:     &streamStub{},
			known: 50000,
			want:  config.StrategyChunking,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := New(tc.cfg).selectStrategy(tc.r, tc.known)
			if got != tc.want {
				t.Fatalf("selectStrategy()=%q, want %q", got, tc.want)
			}
		})
	}
}

// TestRunStreaming verifies the streaming path over an in-memory reader
// produces the same totals as chunking.
func TestRunStreaming(t *testing.T) {
	t.Parallel()

	e := New(config.Processing{Strategy: config.StrategyStreaming, ChunkSize: 1000})
	res, err := e.Run(context.Background(), source.FromRecords(makeRecords(2500)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Strategy != config.StrategyStreaming {
		t.Fatalf("Strategy=%q, want streaming", res.Strategy)
	}
	if res.RecordCount != 2500 || res.ChunkCount != 3 {
		t.Fatalf("records=%d chunks=%d, want 2500/3", res.RecordCount, res.ChunkCount)
	}
}

// TestRun_TransformErrorsCounted verifies malformed values in a typed
// column are counted, not fatal.
func TestRun_TransformErrorsCounted(t *testing.T) {
	t.Parallel()

	recs := makeRecords(200)
	// Poison a few dated values after inference has pinned the type.
	recs[150]["signup_date"] = "not-a-date"
	for i := 0; i < 200; i++ {
		if _, ok := recs[i]["signup_date"]; !ok {
			recs[i]["signup_date"] = fmt.Sprintf("2025-01-%02d", i%28+1)
		}
	}

	e := New(config.Processing{})
	res, err := e.RunRecords(context.Background(), recs)
	if err != nil {
		t.Fatalf("RunRecords: %v", err)
	}
	if res.TransformErrors == 0 {
		t.Fatal("expected transform errors for the poisoned date value")
	}
}
