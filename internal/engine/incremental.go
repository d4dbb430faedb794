package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/abbasaisolutions/sygnify-sub002/internal/analysis"
	"github.com/abbasaisolutions/sygnify-sub002/internal/checkpoint"
	"github.com/abbasaisolutions/sygnify-sub002/internal/config"
	"github.com/abbasaisolutions/sygnify-sub002/pkg/records"
)

// runIncremental sorts the dataset by its monotonic key, skips everything
// at or below the stored checkpoint, and processes the remainder in fixed
// chunks, persisting {LastKey, Version} after each chunk.
//
// Checkpoint write failures degrade resumability, not the result: the
// first failure is surfaced on Result.CheckpointErr and as a warning, and
// the run keeps going.
func (e *Engine) runIncremental(ctx context.Context, recs []records.Record, srcErrs int, started time.Time) (*Result, error) {
	st := e.newRunState(config.StrategyIncremental)
	st.sourceErrs = srcErrs

	key := e.cfg.KeyColumn
	if cols := records.Columns(recs); len(recs) > 0 {
		if i := sort.SearchStrings(cols, key); i == len(cols) || cols[i] != key {
			st.warnings = append(st.warnings, fmt.Sprintf("key column %q not found in dataset", key))
			e.log.Printf("stage=resume dataset=%s status=missing_key column=%s", e.jobName(), key)
		}
	}
	keyed := make([]keyedRecord, 0, len(recs))
	for _, rec := range recs {
		// Records without the key sort first and are never resumed past;
		// they only contribute on a fresh run.
		keyed = append(keyed, keyedRecord{key: keyOf(rec, key), rec: rec})
	}
	sort.SliceStable(keyed, func(i, j int) bool {
		return compareKeys(keyed[i].key, keyed[j].key) < 0
	})

	store := e.store
	if store == nil {
		store = checkpoint.NewMemory()
		defer store.Close()
	}

	dataset := e.jobName()
	cp, found, err := store.Load(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for %s: %w", dataset, err)
	}
	if found {
		e.log.Printf("stage=resume dataset=%s last_key=%s version=%d", dataset, cp.LastKey, cp.Version)
		keyed = trimProcessed(keyed, cp.LastKey)
	}

	size := e.cfg.ChunkSize
	for lo := 0; lo < len(keyed); lo += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := lo + size
		if hi > len(keyed) {
			hi = len(keyed)
		}

		chunk := make([]records.Record, hi-lo)
		for i, kr := range keyed[lo:hi] {
			chunk[i] = kr.rec
		}
		e.processChunk(st, chunk)

		cp.Dataset = dataset
		cp.LastKey = keyed[hi-1].key
		saved, err := store.Save(ctx, cp)
		if err != nil {
			werr := &checkpoint.WriteError{Dataset: dataset, Err: err}
			if st.checkpointErr == nil {
				st.checkpointErr = werr
			}
			st.warnings = append(st.warnings, werr.Error())
			e.log.Printf("stage=checkpoint dataset=%s status=failed err=%q", dataset, err)
		} else {
			cp = saved
		}

		e.afterChunk(st)
	}

	if len(keyed) == 0 && found {
		// Fully caught up; nothing new past the checkpoint.
		return e.finalizeEmptyResume(st, started)
	}

	return e.finalize(st, started)
}

// finalizeEmptyResume returns an empty-but-valid result for a resume run
// that found no new keys. The profiler has seen nothing, so the normal
// finalize path would report an empty dataset.
func (e *Engine) finalizeEmptyResume(st *runState, started time.Time) (*Result, error) {
	rep := analysis.NewAnalyzer(e.cfg.Domain).Finish()
	return &Result{
		Report:         rep,
		Strategy:       st.strategy,
		ProcessingTime: time.Since(started),
		Memory:         MemorySnapshot{LimitMB: e.cfg.MemoryLimitMB},
		SourceErrors:   st.sourceErrs,
		Warnings:       append(st.warnings, "no records past checkpoint"),
		CheckpointErr:  st.checkpointErr,
	}, nil
}

type keyedRecord struct {
	key string
	rec records.Record
}

// keyOf renders the key column as a comparable string. Non-scalar or
// missing keys render empty.
func keyOf(rec records.Record, col string) string {
	if s, ok := rec.String(col); ok {
		return s
	}
	switch t := rec[col].(type) {
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	}
	return ""
}

// trimProcessed drops every record whose key is <= lastKey. The slice is
// sorted, so the boundary is a binary search.
func trimProcessed(keyed []keyedRecord, lastKey string) []keyedRecord {
	i := sort.Search(len(keyed), func(i int) bool {
		return compareKeys(keyed[i].key, lastKey) > 0
	})
	return keyed[i:]
}

// compareKeys orders monotonic keys numerically when both sides parse as
// numbers, lexically otherwise. Mixed pairs put numbers first so numeric
// keys never interleave with stray text.
func compareKeys(a, b string) int {
	// Empty keys sort below everything so keyless records are never
	// reprocessed after the first checkpoint.
	if a == "" || b == "" {
		switch {
		case a == b:
			return 0
		case a == "":
			return -1
		}
		return 1
	}

	fa, oka := analysis.ParseNumeric(a)
	fb, okb := analysis.ParseNumeric(b)
	switch {
	case oka && okb:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case oka:
		return -1
	case okb:
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
