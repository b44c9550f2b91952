package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"controlling_hottub/internal/models"

	"github.com/spf13/afero"
)

const (
	jobFileExt  = ".json"
	skipFileExt = ".skip.json"
)

// JobFiles stores one file per job and one per skip record:
//
//	<dir>/<job-id>.json
//	<dir>/<job-id>.skip.json
type JobFiles struct {
	fs  afero.Fs
	dir string
}

func NewJobFiles(fs afero.Fs, dir string) *JobFiles {
	return &JobFiles{fs: fs, dir: dir}
}

var (
	_ JobRepo  = (*JobFiles)(nil)
	_ SkipRepo = (*JobFiles)(nil)
)

func (r *JobFiles) jobPath(id string) string  { return filepath.Join(r.dir, id+jobFileExt) }
func (r *JobFiles) skipPath(id string) string { return filepath.Join(r.dir, id+skipFileExt) }

// Save writes or replaces the job record.
func (r *JobFiles) Save(ctx context.Context, job models.Job) error {
	if job.ID == "" || strings.ContainsAny(job.ID, `/\`) {
		return fmt.Errorf("invalid job id %q", job.ID)
	}
	return writeRecord(r.fs, r.jobPath(job.ID), kindJob, job)
}

// Get returns the job; found=false when no record exists.
func (r *JobFiles) Get(ctx context.Context, id string) (models.Job, bool, error) {
	var job models.Job
	found, err := readRecord(r.fs, r.jobPath(id), kindJob, &job)
	return job, found, err
}

// List returns every job sorted by creation time. Unreadable records are
// returned as errors rather than skipped.
func (r *JobFiles) List(ctx context.Context) ([]models.Job, error) {
	infos, err := afero.ReadDir(r.fs, r.dir)
	if err != nil {
		if ok, _ := afero.DirExists(r.fs, r.dir); !ok {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", r.dir, err)
	}
	var jobs []models.Job
	for _, fi := range infos {
		name := fi.Name()
		if fi.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, skipFileExt) || !strings.HasSuffix(name, jobFileExt) {
			continue
		}
		job, found, err := r.Get(ctx, strings.TrimSuffix(name, jobFileExt))
		if err != nil {
			return nil, err
		}
		if found {
			jobs = append(jobs, job)
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Delete removes the job record; deleting a missing record is not an error.
func (r *JobFiles) Delete(ctx context.Context, id string) error {
	return removeIfExists(r.fs, r.jobPath(id))
}

// SaveSkip writes the skip record for rec.JobID.
func (r *JobFiles) SaveSkip(ctx context.Context, rec models.SkipRecord) error {
	return writeRecord(r.fs, r.skipPath(rec.JobID), kindSkip, rec)
}

// GetSkip returns the skip record of a job, if any.
func (r *JobFiles) GetSkip(ctx context.Context, jobID string) (models.SkipRecord, bool, error) {
	var rec models.SkipRecord
	found, err := readRecord(r.fs, r.skipPath(jobID), kindSkip, &rec)
	return rec, found, err
}

// DeleteSkip removes the skip record of a job, if any.
func (r *JobFiles) DeleteSkip(ctx context.Context, jobID string) error {
	return removeIfExists(r.fs, r.skipPath(jobID))
}
