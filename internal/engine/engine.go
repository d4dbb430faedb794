// Package engine runs the full analysis pipeline (inference, profiling,
// anomaly detection, forecasting) over a record source under one of four
// execution strategies: chunking, streaming, parallel, incremental.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/abbasaisolutions/sygnify-sub002/internal/analysis"
	"github.com/abbasaisolutions/sygnify-sub002/internal/checkpoint"
	"github.com/abbasaisolutions/sygnify-sub002/internal/config"
	"github.com/abbasaisolutions/sygnify-sub002/internal/forecast"
	"github.com/abbasaisolutions/sygnify-sub002/internal/metrics"
	"github.com/abbasaisolutions/sygnify-sub002/internal/schema"
	"github.com/abbasaisolutions/sygnify-sub002/internal/source"
	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

const (
	defaultChunkSize = 10000
	defaultWorkers   = 4

	// streamBuffer bounds the source channel; a full buffer blocks the
	// reader, which is the backpressure mechanism.
	streamBuffer = 1024

	// streamingRecordThreshold switches auto strategy to streaming for
	// in-memory datasets above this size.
	streamingRecordThreshold = 1000000
)

// Logger is the minimal logging seam the engine writes to.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Progress reports pipeline position after each processed chunk.
type Progress struct {
	Strategy string
	Chunks   int
	Records  int
}

// MemorySnapshot summarizes heap observations taken between chunks.
type MemorySnapshot struct {
	HeapAllocMB     float64 `json:"heap_alloc_mb"`
	PeakHeapAllocMB float64 `json:"peak_heap_alloc_mb"`
	LimitMB         int     `json:"limit_mb"`
	Exceeded        int     `json:"exceeded"`
}

// Result is the uniform output of a run, regardless of strategy.
type Result struct {
	Profile  schema.DatasetProfile        `json:"profile"`
	Report   analysis.Report              `json:"report"`
	Forecast map[string]forecast.Forecast `json:"forecast,omitempty"`
	Summary  forecast.Summary             `json:"forecast_summary"`

	Strategy       string         `json:"strategy"`
	RecordCount    int            `json:"record_count"`
	ChunkCount     int            `json:"chunk_count"`
	ProcessingTime time.Duration  `json:"processing_time_ns"`
	Memory         MemorySnapshot `json:"memory"`

	TransformErrors   int      `json:"transform_errors"`
	SourceErrors      int      `json:"source_errors"`
	DroppedPartitions int      `json:"dropped_partitions,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`

	// CheckpointErr carries a failed incremental checkpoint write. The run
	// result is still complete; only resumability is affected.
	CheckpointErr error `json:"-"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithProgress sets a callback invoked after every processed chunk.
func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithCheckpoints sets the store used by the incremental strategy.
func WithCheckpoints(s checkpoint.Store) Option {
	return func(e *Engine) { e.store = s }
}

// Engine executes analysis runs for one processing configuration.
type Engine struct {
	cfg      config.Processing
	log      Logger
	progress func(Progress)
	store    checkpoint.Store

	// readMemStats is a seam for deterministic memory-watchdog tests.
	readMemStats func(*runtime.MemStats)
}

// New builds an engine, normalizing chunk size and worker defaults.
func New(cfg config.Processing, opts ...Option) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	e := &Engine{
		cfg:          cfg,
		log:          nopLogger{},
		readMemStats: runtime.ReadMemStats,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// runState is the single mutable aggregation state owned by one run.
// Chunk computations fold into it; nothing else mutates it.
type runState struct {
	profiler *schema.Profiler
	analyzer *analysis.Analyzer

	// provisional is the profile inferred after the first chunk; it drives
	// canonicalization for the rest of the run. Type sampling is bounded,
	// so one full chunk pins the types.
	provisional *schema.DatasetProfile

	strategy string
	records  int
	chunks   int

	transformErrs int
	sourceErrs    int
	dropped       int
	warnings      []string

	heapAlloc   uint64
	peakHeap    uint64
	memExceeded int

	checkpointErr error
}

func (e *Engine) newRunState(strategy string) *runState {
	return &runState{
		profiler: schema.NewProfiler(),
		analyzer: analysis.NewAnalyzer(e.cfg.Domain),
		strategy: strategy,
	}
}

// Run analyzes all records from the reader. The strategy comes from the
// configuration, with "auto" resolved from the source shape.
func (e *Engine) Run(ctx context.Context, r source.Reader) (*Result, error) {
	started := time.Now()

	strategy := e.selectStrategy(r, -1)
	e.log.Printf("stage=run job=%s strategy=%s source=%s", e.jobName(), strategy, r.Kind())

	switch strategy {
	case config.StrategyStreaming:
		return e.runStreaming(ctx, r, started)
	case config.StrategyParallel:
		recs, srcErrs, err := e.collect(ctx, r)
		if err != nil {
			return nil, err
		}
		return e.runParallel(ctx, recs, srcErrs, started)
	case config.StrategyIncremental:
		recs, srcErrs, err := e.collect(ctx, r)
		if err != nil {
			return nil, err
		}
		return e.runIncremental(ctx, recs, srcErrs, started)
	default:
		recs, srcErrs, err := e.collect(ctx, r)
		if err != nil {
			return nil, err
		}
		return e.runChunking(ctx, recs, srcErrs, started)
	}
}

// RunRecords analyzes an in-memory dataset. Auto strategy selection sees
// the exact record count.
func (e *Engine) RunRecords(ctx context.Context, recs []records.Record) (*Result, error) {
	started := time.Now()

	strategy := e.selectStrategy(source.FromRecords(recs), len(recs))
	e.log.Printf("stage=run job=%s strategy=%s source=records records=%d", e.jobName(), strategy, len(recs))

	switch strategy {
	case config.StrategyStreaming:
		return e.runStreaming(ctx, source.FromRecords(recs), started)
	case config.StrategyParallel:
		return e.runParallel(ctx, recs, 0, started)
	case config.StrategyIncremental:
		return e.runIncremental(ctx, recs, 0, started)
	default:
		return e.runChunking(ctx, recs, 0, started)
	}
}

// selectStrategy resolves the effective strategy. An explicit non-auto
// strategy always wins; auto picks incremental for growing keyed
// datasets, parallel for CPU-heavy ones, streaming for single-pass
// sources and very large datasets, and chunking otherwise.
func (e *Engine) selectStrategy(r source.Reader, known int) string {
	if s := e.cfg.Strategy; s != "" && s != config.StrategyAuto {
		return s
	}
	if e.cfg.Growing && e.cfg.KeyColumn != "" {
		return config.StrategyIncremental
	}
	if e.cfg.CPUIntensive {
		return config.StrategyParallel
	}
	if r.SinglePass() || known > streamingRecordThreshold {
		return config.StrategyStreaming
	}
	return config.StrategyChunking
}

// collect drains a reader into memory for strategies that need the whole
// dataset (chunking, parallel, incremental).
func (e *Engine) collect(ctx context.Context, r source.Reader) ([]records.Record, int, error) {
	out := make(chan records.Record, streamBuffer)
	errCh := make(chan error, 1)
	srcErrs := 0

	go func() {
		errCh <- r.Stream(ctx, out, func(line int, err error) {
			srcErrs++
			e.log.Printf("stage=read source=%s line=%d err=%q", r.Kind(), line, err)
		})
		close(out)
	}()

	var recs []records.Record
	for rec := range out {
		recs = append(recs, rec)
	}
	if err := <-errCh; err != nil {
		return nil, srcErrs, err
	}
	return recs, srcErrs, nil
}

// runChunking processes contiguous fixed-size chunks sequentially.
func (e *Engine) runChunking(ctx context.Context, recs []records.Record, srcErrs int, started time.Time) (*Result, error) {
	st := e.newRunState(config.StrategyChunking)
	st.sourceErrs = srcErrs

	size := e.cfg.ChunkSize
	for lo := 0; lo < len(recs); lo += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := lo + size
		if hi > len(recs) {
			hi = len(recs)
		}
		e.processChunk(st, recs[lo:hi])
		e.afterChunk(st)
	}

	return e.finalize(st, started)
}

// runStreaming consumes the source through a bounded channel, folding
// records into the aggregation state in arrival order. Chunk accounting
// still advances every ChunkSize records so progress, memory sampling and
// yielding behave like the chunked path.
func (e *Engine) runStreaming(ctx context.Context, r source.Reader, started time.Time) (*Result, error) {
	st := e.newRunState(config.StrategyStreaming)

	out := make(chan records.Record, streamBuffer)
	errCh := make(chan error, 1)

	go func() {
		errCh <- r.Stream(ctx, out, func(line int, err error) {
			st.sourceErrs++
			e.log.Printf("stage=read source=%s line=%d err=%q", r.Kind(), line, err)
		})
		close(out)
	}()

	chunk := make([]records.Record, 0, e.cfg.ChunkSize)
	for rec := range out {
		chunk = append(chunk, rec)
		if len(chunk) == e.cfg.ChunkSize {
			e.processChunk(st, chunk)
			e.afterChunk(st)
			chunk = chunk[:0]
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if len(chunk) > 0 {
		e.processChunk(st, chunk)
		e.afterChunk(st)
	}

	return e.finalize(st, started)
}

// processChunk folds one chunk into the run state: the profiler sees raw
// records, then records are canonicalized against the provisional profile
// and fed to the analyzer.
func (e *Engine) processChunk(st *runState, chunk []records.Record) {
	chunkStart := time.Now()

	for _, rec := range chunk {
		st.profiler.Observe(rec)
	}
	if st.provisional == nil {
		if prof, err := st.profiler.Finish(); err == nil {
			st.provisional = &prof
		}
	}

	var prov schema.DatasetProfile
	if st.provisional != nil {
		prov = *st.provisional
	}
	for _, rec := range chunk {
		canon := schema.Canonicalize(rec, prov, func(te *schema.TransformError) {
			st.transformErrs++
		})
		st.analyzer.Observe(canon)
	}

	st.records += len(chunk)
	st.chunks++

	dur := time.Since(chunkStart)
	metrics.IncCounter(metrics.MetricChunksTotal, 1, nil)
	metrics.IncCounter(metrics.MetricRecordsTotal, float64(len(chunk)), metrics.Labels{"kind": "processed"})
	metrics.ObserveHistogram(metrics.MetricStageDurationSeconds, dur.Seconds(), metrics.Labels{"stage": "chunk", "status": "ok"})
	e.log.Printf("stage=chunk strategy=%s chunk=%d records=%d duration=%s", st.strategy, st.chunks, st.records, dur)

	if e.progress != nil {
		e.progress(Progress{Strategy: st.strategy, Chunks: st.chunks, Records: st.records})
	}
}

// afterChunk samples the heap, nudges the collector when the advisory
// ceiling is crossed, and yields the processor between chunks.
func (e *Engine) afterChunk(st *runState) {
	var ms runtime.MemStats
	e.readMemStats(&ms)

	st.heapAlloc = ms.HeapAlloc
	if ms.HeapAlloc > st.peakHeap {
		st.peakHeap = ms.HeapAlloc
	}
	metrics.ObserveHistogram(metrics.MetricMemoryBytes, float64(ms.HeapAlloc), nil)

	if limit := e.cfg.MemoryLimitMB; limit > 0 {
		if ms.HeapAlloc > uint64(limit)*1024*1024 {
			st.memExceeded++
			warn := fmt.Sprintf("memory limit exceeded: heap %dMB over limit %dMB after chunk %d",
				ms.HeapAlloc/(1024*1024), limit, st.chunks)
			st.warnings = append(st.warnings, warn)
			e.log.Printf("stage=memory status=over_limit heap_mb=%d limit_mb=%d chunk=%d",
				ms.HeapAlloc/(1024*1024), limit, st.chunks)
			runtime.GC()
		}
	}

	runtime.Gosched()
}

// finalize builds the complete profile, report and forecasts from the
// accumulated state.
func (e *Engine) finalize(st *runState, started time.Time) (*Result, error) {
	profile, err := st.profiler.Finish()
	if err != nil {
		return nil, err
	}

	report := st.analyzer.Finish()

	series := make(map[string][]float64)
	strength := make(map[string]float64)
	want := make(map[string]bool, len(e.cfg.Forecast))
	for _, name := range e.cfg.Forecast {
		want[name] = true
	}
	anomalies := 0
	for name, ca := range report.Columns {
		anomalies += len(ca.Anomalies)
		if len(ca.Anomalies) > 0 {
			metrics.IncCounter(metrics.MetricAnomaliesTotal, float64(len(ca.Anomalies)), metrics.Labels{"column": name})
		}
		if ca.Class != analysis.ClassAmount && ca.Class != analysis.ClassNumeric {
			continue
		}
		if len(want) > 0 && !want[name] {
			continue
		}
		if len(ca.Series) > 0 {
			series[name] = ca.Series
		}
		if ca.Trend != nil {
			strength[name] = ca.Trend.Strength
		}
	}

	forecasts := forecast.Run(series)
	summary := forecast.Summarize(forecasts, strength)

	elapsed := time.Since(started)
	metrics.IncCounter(metrics.MetricStageTotal, 1, metrics.Labels{"stage": "run", "status": "ok"})
	metrics.ObserveHistogram(metrics.MetricStageDurationSeconds, elapsed.Seconds(), metrics.Labels{"stage": "run", "status": "ok"})
	e.log.Printf("stage=done strategy=%s records=%d chunks=%d anomalies=%d duration=%s",
		st.strategy, st.records, st.chunks, anomalies, elapsed)

	return &Result{
		Profile:  profile,
		Report:   report,
		Forecast: forecasts,
		Summary:  summary,

		Strategy:       st.strategy,
		RecordCount:    st.records,
		ChunkCount:     st.chunks,
		ProcessingTime: elapsed,
		Memory: MemorySnapshot{
			HeapAllocMB:     float64(st.heapAlloc) / (1024 * 1024),
			PeakHeapAllocMB: float64(st.peakHeap) / (1024 * 1024),
			LimitMB:         e.cfg.MemoryLimitMB,
			Exceeded:        st.memExceeded,
		},

		TransformErrors:   st.transformErrs,
		SourceErrors:      st.sourceErrs,
		DroppedPartitions: st.dropped,
		Warnings:          st.warnings,
		CheckpointErr:     st.checkpointErr,
	}, nil
}

func (e *Engine) jobName() string {
	if e.cfg.Job != "" {
		return e.cfg.Job
	}
	return "default"
}
