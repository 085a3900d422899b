package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spigell/chat-applier/internal/records"
	"gorm.io/datatypes"
)

type profileRow struct {
	ID             string `gorm:"primaryKey"`
	Name           string
	Email          string
	GitHub         string
	LinkedIn       string
	Twitter        string
	ResumeLink     string
	ResumeFilename string
	ResumeMIME     string
	ResumeData     []byte
	PastWorkLinks  datatypes.JSON
	Context        datatypes.JSON
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (profileRow) TableName() string {
	return "profiles"
}

type companyRow struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"index"`
	Website   string
	LinkedIn  string
	Twitter   string
	Context   datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (companyRow) TableName() string {
	return "companies"
}

type jobRow struct {
	ID         string `gorm:"primaryKey"`
	Timestamp  time.Time
	Sender     string `gorm:"index"`
	Message    string
	Role       string
	Company    string
	Location   string
	Salary     string
	Links      datatypes.JSON
	Emails     datatypes.JSON
	FormURL    string
	Score      int
	Chance     string
	Status     string `gorm:"index"`
	SkipReason string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (jobRow) TableName() string {
	return "jobs"
}

func toProfileRow(p *records.Profile) (*profileRow, error) {
	links, err := encodeList(p.PastWorkLinks)
	if err != nil {
		return nil, err
	}
	ctx, err := encodeContext(p.Context)
	if err != nil {
		return nil, err
	}

	row := &profileRow{
		ID:            p.ID,
		Name:          p.Name,
		Email:         p.Email,
		GitHub:        p.GitHub,
		LinkedIn:      p.LinkedIn,
		Twitter:       p.Twitter,
		ResumeLink:    p.ResumeLink,
		PastWorkLinks: links,
		Context:       ctx,
	}
	if p.Resume != nil {
		row.ResumeFilename = p.Resume.Filename
		row.ResumeMIME = p.Resume.MIME
		row.ResumeData = p.Resume.Data
	}
	return row, nil
}

func (r *profileRow) toRecord() (*records.Profile, error) {
	links, err := decodeList(r.PastWorkLinks)
	if err != nil {
		return nil, err
	}
	ctx, err := decodeContext(r.Context)
	if err != nil {
		return nil, err
	}

	p := &records.Profile{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		GitHub:        r.GitHub,
		LinkedIn:      r.LinkedIn,
		Twitter:       r.Twitter,
		ResumeLink:    r.ResumeLink,
		PastWorkLinks: links,
		Context:       ctx,
	}
	if len(r.ResumeData) > 0 {
		p.Resume = &records.Document{Filename: r.ResumeFilename, MIME: r.ResumeMIME, Data: r.ResumeData}
	}
	return p, nil
}

func toCompanyRow(c *records.Company) (*companyRow, error) {
	ctx, err := encodeContext(c.Context)
	if err != nil {
		return nil, err
	}
	return &companyRow{
		ID:       c.ID,
		Name:     c.Name,
		Website:  c.Website,
		LinkedIn: c.LinkedIn,
		Twitter:  c.Twitter,
		Context:  ctx,
	}, nil
}

func (r *companyRow) toRecord() (*records.Company, error) {
	ctx, err := decodeContext(r.Context)
	if err != nil {
		return nil, err
	}
	return &records.Company{
		ID:       r.ID,
		Name:     r.Name,
		Website:  r.Website,
		LinkedIn: r.LinkedIn,
		Twitter:  r.Twitter,
		Context:  ctx,
	}, nil
}

func toJobRow(j *records.Job) (*jobRow, error) {
	links, err := encodeList(j.Links)
	if err != nil {
		return nil, err
	}
	emails, err := encodeList(j.Emails)
	if err != nil {
		return nil, err
	}
	return &jobRow{
		ID:         j.ID,
		Timestamp:  j.Timestamp,
		Sender:     j.Sender,
		Message:    j.Message,
		Role:       j.Role,
		Company:    j.Company,
		Location:   j.Location,
		Salary:     j.Salary,
		Links:      links,
		Emails:     emails,
		FormURL:    j.FormURL,
		Score:      j.Score,
		Chance:     string(j.Chance),
		Status:     string(j.Status),
		SkipReason: j.SkipReason,
	}, nil
}

func (r *jobRow) toRecord() (*records.Job, error) {
	links, err := decodeList(r.Links)
	if err != nil {
		return nil, err
	}
	emails, err := decodeList(r.Emails)
	if err != nil {
		return nil, err
	}
	return &records.Job{
		ID:         r.ID,
		Timestamp:  r.Timestamp.UTC(),
		Sender:     r.Sender,
		Message:    r.Message,
		Role:       r.Role,
		Company:    r.Company,
		Location:   r.Location,
		Salary:     r.Salary,
		Links:      links,
		Emails:     emails,
		FormURL:    r.FormURL,
		Score:      r.Score,
		Chance:     records.Chance(r.Chance),
		Status:     records.JobStatus(r.Status),
		SkipReason: r.SkipReason,
	}, nil
}

func encodeList(items []string) (datatypes.JSON, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode list: %w", err)
	}
	return datatypes.JSON(data), nil
}

func decodeList(data datatypes.JSON) ([]string, error) {
	items := []string{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return items, nil
}

func encodeContext(ctx *records.Context) (datatypes.JSON, error) {
	if ctx == nil {
		return nil, nil
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}
	return datatypes.JSON(data), nil
}

func decodeContext(data datatypes.JSON) (*records.Context, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var ctx records.Context
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return &ctx, nil
}
