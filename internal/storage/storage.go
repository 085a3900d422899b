// Package storage persists profiles, companies and job records.
package storage

import (
	"context"
	"errors"

	"github.com/spigell/chat-applier/internal/records"
)

// ErrNotFound is returned by lookups of unknown ids.
var ErrNotFound = errors.New("record not found")

type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*records.Profile, error)
	SaveProfile(ctx context.Context, profile *records.Profile) error
}

type CompanyStore interface {
	GetCompany(ctx context.Context, id string) (*records.Company, error)
	SaveCompany(ctx context.Context, company *records.Company) error
	ListCompanies(ctx context.Context) ([]*records.Company, error)
}

// JobStore upserts job records by id; the last write wins.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*records.Job, error)
	SaveJob(ctx context.Context, job *records.Job) error
}

// Store is the full persistence surface used by the CLI.
type Store interface {
	ProfileStore
	CompanyStore
	JobStore
}
