package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abbasaisolutions/sygnify-sub002/internal/analysis"
	"github.com/abbasaisolutions/sygnify-sub002/internal/config"
	"github.com/abbasaisolutions/sygnify-sub002/internal/metrics"
	"github.com/abbasaisolutions/sygnify-sub002/internal/schema"
	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

// PartitionError reports a failed parallel partition.
type PartitionError struct {
	Partition int
	Err       error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %d: %v", e.Partition, e.Err)
}

func (e *PartitionError) Unwrap() error { return e.Err }

// partitionResult is the only thing a worker hands back: its analyzer,
// its error counters, or its failure. Workers share no other state.
type partitionResult struct {
	analyzer      *analysis.Analyzer
	transformErrs int
	err           *PartitionError
}

// runParallel profiles sequentially (cheap counters over one pass), then
// fans contiguous partitions out to workers that canonicalize and analyze
// independently. Partition analyzers merge back in partition order, so
// the combined series order matches a sequential run.
//
// A panicking partition is isolated: its contribution is dropped and
// counted, the run continues. Context cancellation is not isolated and
// fails the run.
func (e *Engine) runParallel(ctx context.Context, recs []records.Record, srcErrs int, started time.Time) (*Result, error) {
	st := e.newRunState(config.StrategyParallel)
	st.sourceErrs = srcErrs

	for _, rec := range recs {
		st.profiler.Observe(rec)
	}
	if prof, err := st.profiler.Finish(); err == nil {
		st.provisional = &prof
	}
	var prov schema.DatasetProfile
	if st.provisional != nil {
		prov = *st.provisional
	}

	workers := e.cfg.Workers
	if workers > len(recs) && len(recs) > 0 {
		workers = len(recs)
	}
	parts := partition(len(recs), workers)
	results := make([]partitionResult, len(parts))

	var wg sync.WaitGroup
	for i, p := range parts {
		wg.Add(1)
		go func(i int, lo, hi int) {
			defer wg.Done()
			results[i] = e.analyzePartition(ctx, i, recs[lo:hi], prov)
		}(i, p[0], p[1])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, res := range results {
		if res.err != nil {
			st.dropped++
			st.warnings = append(st.warnings, res.err.Error())
			e.log.Printf("stage=partition partition=%d status=dropped err=%q", i, res.err.Err)
			continue
		}
		st.analyzer.Merge(res.analyzer)
		st.transformErrs += res.transformErrs
	}

	st.records = len(recs)
	st.chunks = len(parts)

	metrics.IncCounter(metrics.MetricChunksTotal, float64(len(parts)), nil)
	metrics.IncCounter(metrics.MetricRecordsTotal, float64(len(recs)), metrics.Labels{"kind": "processed"})
	if e.progress != nil {
		e.progress(Progress{Strategy: st.strategy, Chunks: st.chunks, Records: st.records})
	}
	e.afterChunk(st)

	return e.finalize(st, started)
}

// analyzePartition is the pure worker computation: records in, analyzer
// out. A panic converts to a PartitionError instead of taking down the
// run.
func (e *Engine) analyzePartition(ctx context.Context, idx int, part []records.Record, prov schema.DatasetProfile) (res partitionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = partitionResult{err: &PartitionError{Partition: idx, Err: fmt.Errorf("panic: %v", r)}}
		}
	}()

	an := analysis.NewAnalyzer(e.cfg.Domain)
	transformErrs := 0

	for i, rec := range part {
		if i%1024 == 0 {
			select {
			case <-ctx.Done():
				return partitionResult{err: &PartitionError{Partition: idx, Err: ctx.Err()}}
			default:
			}
		}
		canon := schema.Canonicalize(rec, prov, func(*schema.TransformError) {
			transformErrs++
		})
		an.Observe(canon)
	}

	return partitionResult{analyzer: an, transformErrs: transformErrs}
}

// partition splits n items into at most k contiguous [lo, hi) spans.
func partition(n, k int) [][2]int {
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	out := make([][2]int, 0, k)
	base := n / k
	rem := n % k
	lo := 0
	for i := 0; i < k; i++ {
		size := base
		if i < rem {
			size++
		}
		out = append(out, [2]int{lo, lo + size})
		lo += size
	}
	return out
}
