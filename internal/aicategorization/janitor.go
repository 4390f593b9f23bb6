package aicategorization

import "time"

// maxSessionAge is the abandoned-session retention window, the same 24h
// spec.md §4.8 names for import sessions, applied here for symmetry (§4.9
// gives AI-categorization sessions the same lifecycle shape).
const maxSessionAge = 24 * time.Hour

// JanitorJob implements scheduler.Job (matched structurally: Run() error,
// Name() string) to sweep AI-categorization sessions older than
// maxSessionAge, the sibling of internal/importing's JanitorJob.
type JanitorJob struct {
	repo *Repository
}

// NewJanitorJob constructs a JanitorJob over repo.
func NewJanitorJob(repo *Repository) *JanitorJob {
	return &JanitorJob{repo: repo}
}

// Name identifies this job to the scheduler's logs.
func (j *JanitorJob) Name() string { return "ai-categorization-session-janitor" }

// Run sweeps abandoned sessions.
func (j *JanitorJob) Run() error {
	_, err := j.repo.CleanupOlderThan(maxSessionAge)
	return err
}
