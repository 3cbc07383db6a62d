package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/cryptox"
)

const searchLimit = 20

// Scan records an analysis for a food key. The analysis is read as
// name=value lines followed by optional free-text notes.
func (a *App) Scan(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: scan <food-key>")
		return nil
	}
	key := args[0]

	if item, _, err := a.foods.Lookup(ctx, key); err == nil {
		fmt.Fprintf(a.out, "Food: %s\n", item.Name)
	} else if !errors.Is(err, common.ErrorNotFound) {
		a.log.Warn(ctx, "food lookup failed", "key", key, "error", err)
	}

	analysis, err := GetAnalysis(a.reader, a.out)
	if err != nil {
		return err
	}
	notes, err := GetMultiline(a.reader, "Notes (optional)", a.out)
	if err != nil {
		return err
	}
	if notes != "" {
		analysis["notes"] = notes
	}

	q, err := a.scans.Record(ctx, key, analysis)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Scan #%d queued (%s)\n", q.ID, q.ClientID)
	return nil
}

func (a *App) Lookup(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: lookup <food-key>")
		return nil
	}
	item, fromCache, err := a.foods.Lookup(ctx, args[0])
	if errors.Is(err, common.ErrorNotFound) {
		fmt.Fprintln(a.out, "Not found")
		return nil
	}
	if err != nil {
		return err
	}

	src := "remote"
	if fromCache {
		src = "cache"
	}
	fmt.Fprintf(a.out, "%s  %s  [%s]\n", item.Key, item.Name, src)
	for _, k := range sortedKeys(item.Attributes) {
		fmt.Fprintf(a.out, "  %s: %v\n", k, item.Attributes[k])
	}
	return nil
}

func (a *App) Search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: search <text>")
		return nil
	}
	items, err := a.foods.Search(ctx, strings.Join(args, " "), searchLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No cached foods match")
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(a.out, "%s  %s\n", it.Key, it.Name)
	}
	return nil
}

func (a *App) Pending(ctx context.Context) error {
	scans, err := a.cache.PendingScans(ctx)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		fmt.Fprintln(a.out, "Queue is empty")
		return nil
	}
	a.printQueue(scans)
	return nil
}

// Stuck lists scans parked after too many failed submissions.
func (a *App) Stuck(ctx context.Context) error {
	scans, err := a.sync.Stuck(ctx)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		fmt.Fprintln(a.out, "No stuck scans")
		return nil
	}
	a.printQueue(scans)
	return nil
}

func (a *App) printQueue(scans []models.QueuedScan) {
	for _, s := range scans {
		line := fmt.Sprintf("#%d  %s  %s  %s  attempts=%d",
			s.ID, s.RecordedAt.Local().Format("2006-01-02 15:04:05"), s.FoodKey, s.State, s.Attempts)
		if s.LastError != "" {
			line += "  last_error=" + strconv.Quote(s.LastError)
		}
		fmt.Fprintln(a.out, line)
	}
}

// Show prints one queued scan with its analysis decrypted. The plaintext is
// wiped once printed.
func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: show <id>")
		return nil
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		fmt.Fprintln(a.out, "Usage: show <id>")
		return nil
	}

	q, err := a.cache.Scan(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		fmt.Fprintln(a.out, "Not found")
		return nil
	}
	if err != nil {
		return err
	}
	res, err := a.cache.OpenScan(*q)
	if err != nil {
		return fmt.Errorf("scan #%d: %w", id, err)
	}
	defer cryptox.SecureWipe(cryptox.Record(res.Analysis), a.cfg.SensitiveFields...)

	fmt.Fprintf(a.out, "#%d  %s  %s  %s  attempts=%d\n",
		q.ID, res.RecordedAt.Local().Format("2006-01-02 15:04:05"), res.FoodKey, q.State, q.Attempts)
	for _, k := range sortedKeys(res.Analysis) {
		fmt.Fprintf(a.out, "  %s: %v\n", k, res.Analysis[k])
	}
	return nil
}

// Sync drains the queue now and prints the outcome.
func (a *App) Sync(ctx context.Context) error {
	r, err := a.sync.DrainQueue(ctx)
	if err != nil {
		return err
	}
	if r.Skipped {
		fmt.Fprintln(a.out, "Link not good enough to sync, scans stay queued")
		return nil
	}
	fmt.Fprintf(a.out, "Synced %d, failed %d, deferred %d, stuck %d\n", r.Synced, r.Failed, r.Deferred, r.Stuck)
	return nil
}

// Resync releases entries parked after too many failures and drains.
func (a *App) Resync(ctx context.Context) error {
	n, err := a.sync.Resync(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Reset %d failed scans\n", n)
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.sync.Stats(ctx)
	if err != nil {
		return err
	}
	net := a.monitor.Status()

	state := "offline"
	if net.Reachable {
		state = "online"
	}
	fmt.Fprintf(a.out, "Network: %s, quality %d, latency %dms\n", state, net.QualityScore, net.LatencyMs)
	fmt.Fprintf(a.out, "Queue: %d pending, %d stuck\n", st.Pending, st.Stuck)
	if st.LastReport != nil {
		r := st.LastReport
		fmt.Fprintf(a.out, "Last sync: %s, synced %d, failed %d\n",
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"), r.Synced, r.Failed)
	}
	return nil
}

// Purge drops synced scans older than the retention period.
func (a *App) Purge(ctx context.Context) error {
	n, err := a.cache.PurgeStale(ctx, a.now().Add(-a.cfg.Retention))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Purged %d synced scans\n", n)
	return nil
}
