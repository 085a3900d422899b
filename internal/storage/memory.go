package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/spigell/chat-applier/internal/records"
)

// Memory is a Store kept in process memory. Values are copied on the way in
// and out so callers cannot mutate stored records.
type Memory struct {
	mu        sync.RWMutex
	profiles  map[string]records.Profile
	companies map[string]records.Company
	jobs      map[string]records.Job
}

func NewMemory() *Memory {
	return &Memory{
		profiles:  make(map[string]records.Profile),
		companies: make(map[string]records.Company),
		jobs:      make(map[string]records.Job),
	}
}

func (m *Memory) GetProfile(_ context.Context, id string) (*records.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, fmt.Errorf("get profile %s: %w", id, ErrNotFound)
	}
	return copyProfile(p), nil
}

func (m *Memory) SaveProfile(_ context.Context, profile *records.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.ID] = *copyProfile(*profile)
	return nil
}

func (m *Memory) GetCompany(_ context.Context, id string) (*records.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, fmt.Errorf("get company %s: %w", id, ErrNotFound)
	}
	c.Context = copyContext(c.Context)
	return &c, nil
}

func (m *Memory) SaveCompany(_ context.Context, company *records.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *company
	c.Context = copyContext(c.Context)
	m.companies[c.ID] = c
	return nil
}

func (m *Memory) ListCompanies(_ context.Context) ([]*records.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*records.Company, 0, len(m.companies))
	for _, c := range m.companies {
		c.Context = copyContext(c.Context)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GetJob(_ context.Context, id string) (*records.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get job %s: %w", id, ErrNotFound)
	}
	return copyJob(j), nil
}

func (m *Memory) SaveJob(_ context.Context, job *records.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *copyJob(*job)
	return nil
}

// Jobs returns every stored job ordered by id.
func (m *Memory) Jobs() []*records.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*records.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyProfile(p records.Profile) *records.Profile {
	p.PastWorkLinks = slices.Clone(p.PastWorkLinks)
	p.Context = copyContext(p.Context)
	if p.Resume != nil {
		doc := *p.Resume
		doc.Data = slices.Clone(doc.Data)
		p.Resume = &doc
	}
	return &p
}

func copyJob(j records.Job) *records.Job {
	j.Links = slices.Clone(j.Links)
	j.Emails = slices.Clone(j.Emails)
	return &j
}

func copyContext(c *records.Context) *records.Context {
	if c == nil {
		return nil
	}
	out := *c
	if c.Person != nil {
		person := *c.Person
		person.Bullets = slices.Clone(person.Bullets)
		out.Person = &person
	}
	if c.Company != nil {
		company := *c.Company
		company.Products = slices.Clone(company.Products)
		company.Highlights = slices.Clone(company.Highlights)
		out.Company = &company
	}
	return &out
}
