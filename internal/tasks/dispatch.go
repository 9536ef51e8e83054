package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/tabx/internal/models"
	"github.com/desertthunder/tabx/internal/shared"
	"golang.org/x/time/rate"
)

// DispatchOpts contains configuration for fanning a command out to several tabs.
type DispatchOpts struct {
	NumWorkers int     // Concurrent workers (default: 4)
	RateLimit  float64 // Commands per second (default: 10)
}

// TabResult is the outcome of one command delivery.
type TabResult struct {
	TabID   string
	Success bool
	Error   error
}

// DispatchResult summarizes a [Engine.Dispatch] run.
type DispatchResult struct {
	Command   models.Command
	Total     int
	Succeeded int
	Failed    int
	Results   []TabResult
}

// Target selects which tabs a dispatched command goes to.
type Target string

const (
	TargetAll     Target = "all"
	TargetPlaying Target = "playing"
	TargetDefault Target = "default"
	TargetEnabled Target = "enabled"
)

// ParseTarget validates a target name.
func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case TargetAll, TargetPlaying, TargetDefault, TargetEnabled:
		return Target(s), nil
	default:
		return "", fmt.Errorf("%w: target %q (want all, playing, default or enabled)", shared.ErrInvalidArgument, s)
	}
}

// SelectTargets returns the ids of tabs matching target, in view order.
func SelectTargets(tabs []models.TabRecord, target Target) []string {
	var ids []string
	for _, t := range tabs {
		var ok bool
		switch target {
		case TargetAll:
			ok = true
		case TargetPlaying:
			ok = t.Playing()
		case TargetDefault:
			ok = t.DefaultTab
		case TargetEnabled:
			ok = t.StreamkeysEnabled
		}
		if ok {
			ids = append(ids, t.TabID)
		}
	}
	return ids
}

// Dispatch sends cmd to every tab in tabIDs with a bounded worker pool and a shared rate limiter.
//
// Individual failures are recorded in the result; only a missing session or invalid command fails the call.
func (e *PopupEngine) Dispatch(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	tabIDs []string,
	cmd models.Command,
	opts DispatchOpts,
) (*DispatchResult, error) {
	if e.session == nil {
		return nil, fmt.Errorf("%w: popup session not initialized", shared.ErrServiceUnavailable)
	}
	if _, err := models.ParseCommand(string(cmd)); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidCommand, err)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > len(tabIDs) && len(tabIDs) > 0 {
		opts.NumWorkers = len(tabIDs)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10.0
	}

	result := &DispatchResult{
		Command: cmd,
		Total:   len(tabIDs),
		Results: make([]TabResult, 0, len(tabIDs)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan string, len(tabIDs))
	results := make(chan TabResult, len(tabIDs))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.dispatchWorker(ctx, &wg, limiter, jobs, results, cmd)
	}

	for _, id := range tabIDs {
		jobs <- id
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Success {
			result.Succeeded++
			e.sendProgress(prog, dispatchedUpdate(completed, len(tabIDs), res.TabID, cmd))
		} else {
			result.Failed++
			e.sendProgress(prog, dispatchFailedUpdate(completed, len(tabIDs), res.TabID, res.Error))
		}
	}

	e.logger.Info("command dispatched", "command", cmd, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

// dispatchWorker delivers commands from jobs until it is closed.
func (e *PopupEngine) dispatchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan string,
	results chan<- TabResult,
	cmd models.Command,
) {
	defer wg.Done()

	for tabID := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- TabResult{TabID: tabID, Error: err}
			continue
		}

		if err := e.session.SendAction(ctx, tabID, cmd); err != nil {
			results <- TabResult{TabID: tabID, Error: err}
			continue
		}
		results <- TabResult{TabID: tabID, Success: true}
	}
}
