package importing

import "time"

// maxSessionAge is the abandoned-session retention window of spec.md §4.8.
const maxSessionAge = 24 * time.Hour

// JanitorJob implements scheduler.Job (matched structurally: Run() error,
// Name() string) to sweep import sessions older than maxSessionAge.
type JanitorJob struct {
	repo *Repository
}

// NewJanitorJob constructs a JanitorJob over repo.
func NewJanitorJob(repo *Repository) *JanitorJob {
	return &JanitorJob{repo: repo}
}

// Name identifies this job to the scheduler's logs.
func (j *JanitorJob) Name() string { return "import-session-janitor" }

// Run sweeps abandoned sessions.
func (j *JanitorJob) Run() error {
	_, err := j.repo.CleanupOlderThan(maxSessionAge)
	return err
}
