// Package stats queries monthly income and expense totals. Every query is a
// remote call; results are never cached across selections.
package stats

import (
	"context"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"
)

// Clock returns the current time. The selection defaults to its month.
type Clock func() time.Time

type Aggregator struct {
	client ledger.StatsClient
	clock  Clock
	logger *log.Logger

	mu        sync.Mutex
	selection core.StatsQuery
	seq       uint64
}

func New(client ledger.StatsClient, clock Clock, logger *log.Logger) *Aggregator {
	if clock == nil {
		clock = time.Now
	}
	now := clock()
	return &Aggregator{
		client:    client,
		clock:     clock,
		logger:    log.OrDefault(logger, log.ComponentStats),
		selection: core.StatsQuery{Month: int(now.Month()), Year: now.Year()},
	}
}

// Select changes the month and year used by Query.
func (a *Aggregator) Select(month, year int) error {
	q := core.StatsQuery{Month: month, Year: year}
	if err := q.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selection = q
	return nil
}

func (a *Aggregator) Selection() core.StatsQuery {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selection
}

// Query fetches the totals for the current selection. Missing totals are
// decoded as zero by the ledger client. A query overtaken by a later one returns
// core.ErrSuperseded.
func (a *Aggregator) Query(ctx context.Context) (core.StatsResult, error) {
	a.mu.Lock()
	q := a.selection
	a.seq++
	token := a.seq
	a.mu.Unlock()

	res, err := a.client.GetStats(ctx, q)

	a.mu.Lock()
	latest := a.seq
	a.mu.Unlock()
	if token != latest {
		return core.StatsResult{}, core.ErrSuperseded
	}
	if err != nil {
		fields := log.NewFields()
		fields[log.FieldMonth] = q.Month
		fields[log.FieldYear] = q.Year
		a.logger.LogFailure(ctx, "Stats query failed", err, core.Kind(err), log.OpStats, fields)
		return core.StatsResult{}, err
	}
	return res, nil
}

// YearOptions lists the current year and the n-1 years before it, newest
// first.
func (a *Aggregator) YearOptions(n int) []int {
	year := a.clock().Year()
	out := make([]int, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, year-i)
	}
	return out
}
