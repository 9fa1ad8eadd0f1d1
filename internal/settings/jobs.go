package settings

import (
	"context"
	"fmt"
	"strings"
)

// Jobs returns the job index in selectable order.
func (r *Repository) Jobs(ctx context.Context) ([]IndexEntry, error) {
	return r.readIndex(ctx, KeyJobsIndex)
}

// Job returns the full record for id or nil when it is missing.
func (r *Repository) Job(ctx context.Context, id string) (*Job, error) {
	var job *Job
	if err := r.read(ctx, r.store.Local, JobKey(id), &job); err != nil {
		return nil, err
	}
	return job, nil
}

// JobAt returns the job at position index of the index. It returns nil when
// the position is out of range. An index entry without a record yields a job
// with empty text.
func (r *Repository) JobAt(ctx context.Context, index int) (*Job, error) {
	entries, err := r.Jobs(ctx)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(entries) {
		return nil, nil
	}

	entry := entries[index]
	job, err := r.Job(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return &Job{ID: entry.ID, Name: entry.Name}, nil
	}
	return job, nil
}

// SaveJob creates the job when its id is empty, otherwise updates it in place
// keeping its index position.
func (r *Repository) SaveJob(ctx context.Context, job Job) (Job, error) {
	job.Name = strings.TrimSpace(job.Name)
	job.Text = strings.TrimSpace(job.Text)
	job.ImpactProfile = strings.TrimSpace(job.ImpactProfile)

	if err := r.check(job); err != nil {
		return Job{}, err
	}

	entries, err := r.Jobs(ctx)
	if err != nil {
		return Job{}, err
	}

	if job.ID == "" {
		job.ID = r.newID()
	}

	entries = upsertEntry(entries, IndexEntry{ID: job.ID, Name: job.Name})

	if err := r.store.Local.Set(ctx, JobKey(job.ID), job); err != nil {
		return Job{}, fmt.Errorf("writing job %s: %w", job.ID, err)
	}
	if err := r.store.Local.Set(ctx, KeyJobsIndex, entries); err != nil {
		return Job{}, fmt.Errorf("writing jobs index: %w", err)
	}

	return job, nil
}

// RemoveJob deletes the record and its index entry.
func (r *Repository) RemoveJob(ctx context.Context, id string) error {
	entries, err := r.Jobs(ctx)
	if err != nil {
		return err
	}

	remaining, found := removeEntry(entries, id)
	if !found {
		return fmt.Errorf("%w: job %s", ErrNotFound, id)
	}

	if err := r.store.Local.Remove(ctx, JobKey(id)); err != nil {
		return fmt.Errorf("removing job %s: %w", id, err)
	}
	return r.store.Local.Set(ctx, KeyJobsIndex, remaining)
}

func upsertEntry(entries []IndexEntry, entry IndexEntry) []IndexEntry {
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i].Name = entry.Name
			return entries
		}
	}
	return append(entries, entry)
}

func removeEntry(entries []IndexEntry, id string) ([]IndexEntry, bool) {
	remaining := make([]IndexEntry, 0, len(entries))
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, e)
	}
	return remaining, found
}
