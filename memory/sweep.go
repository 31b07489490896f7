package memory

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Sweep enforces the memory ceilings and drops expired entries. Task and repo
// memories beyond MaxTaskMemory and MaxRepoMemory are evicted least recently
// updated first. Only one sweep runs at a time; a concurrent call returns a
// report with Skipped set.
func (m *Manager) Sweep(ctx context.Context) (SweepReport, error) {
	if !m.sweeping.CompareAndSwap(false, true) {
		return SweepReport{Skipped: true}, nil
	}
	defer m.sweeping.Store(false)

	var (
		report SweepReport
		errs   []error
	)
	n, err := m.sweepTasks()
	report.TaskMemories = n
	errs = append(errs, err)

	n, err = m.sweepRepos()
	report.RepoMemories = n
	errs = append(errs, err)

	report.CacheEntries = m.sweepCache()

	if m.index != nil && m.opts.VectorStore.CacheLifetime > 0 {
		n, err := m.index.DeleteOlderThan(ctx, m.now().Add(-m.opts.VectorStore.CacheLifetime))
		report.Vectors = n
		errs = append(errs, err)
	}

	m.evictions.Add(int64(report.Total()))
	m.sweeps.Add(1)
	m.lastSweep.Store(m.now().UnixNano())

	if report.Total() > 0 {
		m.opts.Logger.Info("memory.sweep.completed",
			"task_memories", report.TaskMemories,
			"repo_memories", report.RepoMemories,
			"cache_entries", report.CacheEntries,
			"vectors", report.Vectors,
		)
	}
	return report, errors.Join(errs...)
}

// oldest returns the ids of the len(ids)-max entries with the earliest
// update times.
func oldest(ids []string, updated []time.Time, max int) []string {
	if max <= 0 || len(ids) <= max {
		return nil
	}
	idx := make([]int, len(ids))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return updated[idx[a]].Before(updated[idx[b]]) })
	out := make([]string, 0, len(ids)-max)
	for _, i := range idx[:len(ids)-max] {
		out = append(out, ids[i])
	}
	return out
}

func (m *Manager) sweepTasks() (int, error) {
	m.taskMu.Lock()
	defer m.taskMu.Unlock()

	all, err := m.tasks.List()
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(all))
	updated := make([]time.Time, len(all))
	for i, tm := range all {
		ids[i], updated[i] = tm.TaskID, tm.UpdatedAt
	}
	evicted := 0
	for _, id := range oldest(ids, updated, m.opts.MaxTaskMemory) {
		if err := m.tasks.Delete(id); err != nil {
			return evicted, err
		}
		m.opts.Logger.Debug("memory.task.evicted", "task_id", id)
		evicted++
	}
	return evicted, nil
}

func (m *Manager) sweepRepos() (int, error) {
	m.repoMu.Lock()
	defer m.repoMu.Unlock()

	all, err := m.repos.List()
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(all))
	updated := make([]time.Time, len(all))
	for i, rm := range all {
		ids[i], updated[i] = rm.RepoID, rm.UpdatedAt
	}
	evicted := 0
	for _, id := range oldest(ids, updated, m.opts.MaxRepoMemory) {
		if err := m.repos.Delete(id); err != nil {
			return evicted, err
		}
		m.opts.Logger.Debug("memory.repo.evicted", "repo_id", id)
		evicted++
	}
	return evicted, nil
}

func (m *Manager) sweepCache() int {
	now := m.now()
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	n := 0
	for k, e := range m.cache {
		if e.expired(now) {
			delete(m.cache, k)
			n++
		}
	}
	return n
}
