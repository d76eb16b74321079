package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/internal/store"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// fakeStore mirrors the transactional semantics of store.PostgresStore in memory.
type fakeStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*models.ScrapingJob
	items    map[uuid.UUID][]*models.QueueItem
	profiles map[string]*models.Profile

	createErr        error
	listPendingErr   error
	completeFailures int
	completeCalls    int
	violations       []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:     make(map[uuid.UUID]*models.ScrapingJob),
		items:    make(map[uuid.UUID][]*models.QueueItem),
		profiles: make(map[string]*models.Profile),
	}
}

func cloneJob(j *models.ScrapingJob) *models.ScrapingJob {
	c := *j
	return &c
}

func cloneItem(i *models.QueueItem) *models.QueueItem {
	c := *i
	return &c
}

func (s *fakeStore) checkInvariants(j *models.ScrapingJob) {
	if j.ProcessedProfiles != j.SuccessfulProfiles+j.FailedProfiles || j.ProcessedProfiles > j.TotalProfiles {
		s.violations = append(s.violations, fmt.Sprintf("counters %+v", *j))
	}
	if j.Status == models.StatusCompleted {
		for _, it := range s.items[j.ID] {
			if it.Status == models.StatusPending {
				s.violations = append(s.violations, fmt.Sprintf("job %s completed with pending item %s", j.ID, it.ID))
			}
		}
	}
}

func (s *fakeStore) CreateJobWithItems(_ context.Context, job *models.ScrapingJob, items []*models.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.jobs[job.ID] = cloneJob(job)
	cp := make([]*models.QueueItem, 0, len(items))
	for _, it := range items {
		cp = append(cp, cloneItem(it))
	}
	sort.Slice(cp, func(a, b int) bool { return cp[a].Priority < cp[b].Priority })
	s.items[job.ID] = cp
	return nil
}

func (s *fakeStore) GetJob(_ context.Context, id uuid.UUID) (*models.ScrapingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *fakeStore) ListJobs(_ context.Context, filter store.JobFilter) ([]*models.ScrapingJob, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, st := range filter.Statuses {
		want[st] = true
	}
	out := []*models.ScrapingJob{}
	for _, j := range s.jobs {
		if len(want) == 0 || want[j.Status] {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	total := len(out)
	page, limit := store.NormalizePage(filter.Page, filter.Limit)
	start := (page - 1) * limit
	if start > len(out) {
		start = len(out)
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (s *fakeStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) (*models.ScrapingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	allowed := map[string][]string{
		models.StatusPending:    {models.StatusProcessing, models.StatusFailed},
		models.StatusProcessing: {models.StatusCompleted, models.StatusFailed},
	}
	valid := false
	for _, to := range allowed[j.Status] {
		if to == status {
			valid = true
		}
	}
	if !valid {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, j.Status, status)
	}

	if u := store.ApplyJobUpdateOptions(opts...); u.ErrorMessage != nil {
		j.ErrorMessage = u.ErrorMessage
	}

	now := time.Now().UTC()
	j.Status = status
	j.UpdatedAt = now
	if status == models.StatusProcessing && j.StartedAt == nil {
		j.StartedAt = &now
	}
	if models.IsTerminalStatus(status) && j.CompletedAt == nil {
		j.CompletedAt = &now
	}
	s.checkInvariants(j)
	return cloneJob(j), nil
}

func (s *fakeStore) itemsWithStatus(jobID uuid.UUID, status string) []*models.QueueItem {
	out := []*models.QueueItem{}
	for _, it := range s.items[jobID] {
		if status == "" || it.Status == status {
			out = append(out, cloneItem(it))
		}
	}
	return out
}

func (s *fakeStore) ListPendingItems(_ context.Context, jobID uuid.UUID) ([]*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listPendingErr != nil {
		return nil, s.listPendingErr
	}
	return s.itemsWithStatus(jobID, models.StatusPending), nil
}

func (s *fakeStore) CountPendingItems(_ context.Context, jobID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.itemsWithStatus(jobID, models.StatusPending)), nil
}

func (s *fakeStore) ListQueueItems(_ context.Context, jobID uuid.UUID, status string) ([]*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsWithStatus(jobID, status), nil
}

func (s *fakeStore) findItem(id uuid.UUID) *models.QueueItem {
	for _, list := range s.items {
		for _, it := range list {
			if it.ID == id {
				return it
			}
		}
	}
	return nil
}

func (s *fakeStore) MarkItemProcessing(_ context.Context, itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.findItem(itemID)
	if it == nil || it.Status != models.StatusPending {
		return fmt.Errorf("%w: item %s is not pending", store.ErrInvalidTransition, itemID)
	}
	now := time.Now().UTC()
	it.Status = models.StatusProcessing
	it.StartedAt = &now
	it.Attempts++
	return nil
}

func (s *fakeStore) RequeueProcessingItems(_ context.Context, jobID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items[jobID] {
		if it.Status == models.StatusProcessing {
			it.Status = models.StatusPending
			it.StartedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CompleteItem(_ context.Context, item *models.QueueItem, f models.ProfileFields) (*models.Profile, *models.ScrapingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCalls++
	if s.completeFailures > 0 {
		s.completeFailures--
		return nil, nil, fmt.Errorf("connection reset")
	}

	it := s.findItem(item.ID)
	if it == nil || it.Status != models.StatusProcessing {
		return nil, nil, fmt.Errorf("%w: item %s is not processing", store.ErrInvalidTransition, item.ID)
	}
	raw, _ := json.Marshal(f)
	now := time.Now().UTC()
	it.Status = models.StatusCompleted
	it.CompletedAt = &now
	it.ScrapedData = raw

	jobID := item.JobID
	p, ok := s.profiles[item.LinkedInURL]
	if !ok {
		p = &models.Profile{ID: uuid.New(), LinkedInURL: item.LinkedInURL, ScrapedAt: now}
		s.profiles[item.LinkedInURL] = p
	}
	p.Name = f.Name
	p.CurrentTitle = f.CurrentTitle
	p.CurrentCompany = f.CurrentCompany
	p.AISummary = f.AISummary
	p.Skills = f.Skills
	p.LastUpdated = now
	p.ScrapingJobID = &jobID

	j := s.jobs[jobID]
	j.ProcessedProfiles++
	j.SuccessfulProfiles++
	j.UpdatedAt = now
	s.checkInvariants(j)

	pc := *p
	return &pc, cloneJob(j), nil
}

func (s *fakeStore) FailItem(_ context.Context, item *models.QueueItem, errMsg string) (*models.ScrapingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.findItem(item.ID)
	if it == nil || it.Status != models.StatusProcessing {
		return nil, fmt.Errorf("%w: item %s is not processing", store.ErrInvalidTransition, item.ID)
	}
	now := time.Now().UTC()
	it.Status = models.StatusFailed
	it.CompletedAt = &now
	it.ErrorMessage = &errMsg

	j := s.jobs[item.JobID]
	j.ProcessedProfiles++
	j.FailedProfiles++
	j.UpdatedAt = now
	s.checkInvariants(j)
	return cloneJob(j), nil
}

func (s *fakeStore) profileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

func (s *fakeStore) item(jobID uuid.UUID, priority int) *models.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items[jobID] {
		if it.Priority == priority {
			return cloneItem(it)
		}
	}
	return nil
}

func (s *fakeStore) setJobStatus(id uuid.UUID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].Status = status
}

func (s *fakeStore) setItemStatus(jobID uuid.UUID, priority int, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items[jobID] {
		if it.Priority == priority {
			it.Status = status
		}
	}
}

func (s *fakeStore) invariantViolations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.violations...)
}

// fakeCache is an in-memory JobCache.
type fakeCache struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]*models.ScrapingJob
	locks     map[string]string
	gets      int
	refreshes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		snapshots: make(map[uuid.UUID]*models.ScrapingJob),
		locks:     make(map[string]string),
	}
}

func (c *fakeCache) SetJobSnapshot(_ context.Context, job *models.ScrapingJob, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[job.ID] = cloneJob(job)
	return nil
}

func (c *fakeCache) GetJobSnapshot(_ context.Context, jobID uuid.UUID) (*models.ScrapingJob, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	j, ok := c.snapshots[jobID]
	if !ok {
		return nil, false, nil
	}
	return cloneJob(j), true, nil
}

func (c *fakeCache) AcquireLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.locks[key]; held {
		return false, nil
	}
	c.locks[key] = token
	return true, nil
}

func (c *fakeCache) ReleaseLock(_ context.Context, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[key] == token {
		delete(c.locks, key)
	}
	return nil
}

func (c *fakeCache) RefreshLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshes++
	return c.locks[key] == token, nil
}

// steal hands the lock to another owner, as if it had expired and been
// acquired elsewhere.
func (c *fakeCache) steal(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locks[key] = "other-instance"
}

func (c *fakeCache) refreshCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}

func (c *fakeCache) lockHeld(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.locks[key]
	return ok
}
