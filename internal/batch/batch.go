// Package batch decodes many tensor dumps concurrently and summarizes the run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/textspot/internal/common"
	"github.com/MeKo-Tech/textspot/internal/pipeline"
	"github.com/MeKo-Tech/textspot/internal/tensors"
)

// ErrNoInputs is returned when discovery finds nothing to decode.
var ErrNoInputs = errors.New("no tensor dumps found")

// Item is the outcome for one input file.
type Item struct {
	File   string                `json:"file"`
	Result *pipeline.ImageResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// Result holds the result of a batch run. Items follow discovery order.
type Result struct {
	Items    []Item             `json:"items"`
	Workers  int                `json:"workers"`
	Duration time.Duration      `json:"duration_ns"`
	Stages   []common.Stage     `json:"stages"`
	Memory   common.MemoryDelta `json:"memory"`
	Stats    Stats              `json:"stats"`
}

// Stats summarizes a batch run.
type Stats struct {
	Files            int     `json:"files"`
	Decoded          int     `json:"decoded"`
	Failed           int     `json:"failed"`
	Regions          int     `json:"regions"`
	Candidates       int     `json:"candidates"`
	ThroughputPerSec float64 `json:"throughput_per_sec"`
}

// Failed reports whether any item failed.
func (r *Result) Failed() bool { return r.Stats.Failed > 0 }

// Run discovers dumps under args and decodes them.
func Run(ctx context.Context, args []string, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timer := common.NewNamedTimer("batch")
	files, err := Discover(args, cfg.Recursive, Filter{Include: cfg.IncludePatterns, Exclude: cfg.ExcludePatterns})
	if err != nil {
		return nil, fmt.Errorf("failed to discover tensor dumps: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoInputs
	}
	timer.Lap("discover")

	before := common.TakeMemorySnapshot()
	items, workers, err := decodeFiles(ctx, files, cfg)
	if err != nil {
		return nil, err
	}
	timer.Lap("decode")
	total := timer.Stop()

	res := &Result{
		Items:    items,
		Workers:  workers,
		Duration: total,
		Stages:   timer.Stages(),
		Memory:   common.TakeMemorySnapshot().Since(before),
		Stats:    summarize(items, total),
	}
	slog.Debug("Batch decoded", "timing", timer.String(), "memory", res.Memory.String(),
		"files", res.Stats.Files, "failed", res.Stats.Failed)
	return res, nil
}

// DecodeFile loads and decodes a single dump.
func DecodeFile(path string, cfg Config) (*pipeline.ImageResult, error) {
	dump, err := tensors.LoadDump(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	res, err := pipeline.DecodeDump(cfg.Pipeline, dump, cfg.FrameWidth, cfg.FrameHeight)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return res, nil
}

// decodeFiles fans files out to a bounded worker pool. Without FailFast a
// failing file is recorded on its item; with it the first failure cancels
// the remaining work and is returned.
func decodeFiles(ctx context.Context, files []string, cfg Config) ([]Item, int, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	items := make([]Item, len(files))
	for i, f := range files {
		items[i].File = f
	}
	workers := cfg.workers(len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := DecodeFile(files[i], cfg)
				if err != nil {
					items[i].Error = err.Error()
					slog.Warn("Dump failed", "file", files[i], "error", err)
					if cfg.FailFast {
						cancel(err)
					}
					continue
				}
				items[i].Result = res
			}
		}()
	}

send:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()
	if err := context.Cause(ctx); err != nil {
		return nil, workers, err
	}
	return items, workers, nil
}

func summarize(items []Item, d time.Duration) Stats {
	s := Stats{Files: len(items)}
	for _, it := range items {
		if it.Result == nil {
			s.Failed++
			continue
		}
		s.Decoded++
		s.Regions += len(it.Result.Regions)
		s.Candidates += it.Result.Candidates
	}
	if d > 0 {
		s.ThroughputPerSec = float64(s.Decoded) / d.Seconds()
	}
	return s
}
