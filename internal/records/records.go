package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobIDLayout formats message timestamps inside job record keys.
const JobIDLayout = "2006-01-02 15:04:05"

// Document is a stored binary file such as a resume.
type Document struct {
	Filename string
	MIME     string
	Data     []byte
}

// Profile is the candidate applying to jobs.
type Profile struct {
	ID            string
	Name          string
	Email         string
	GitHub        string
	LinkedIn      string
	Twitter       string
	ResumeLink    string
	Resume        *Document
	PastWorkLinks []string
	// Context caches the enriched summary; nil means not enriched yet.
	Context *Context
}

// Company is an employer mentioned in a job post.
type Company struct {
	ID       string
	Name     string
	Website  string
	LinkedIn string
	Twitter  string
	Context  *Context
}

type JobStatus string

const (
	JobDetected JobStatus = "detected"
	JobApplied  JobStatus = "applied"
	JobSkipped  JobStatus = "skipped"
)

// Job is the persisted record of a detected job post.
type Job struct {
	ID         string
	Timestamp  time.Time
	Sender     string
	Message    string
	Role       string
	Company    string
	Location   string
	Salary     string
	Links      []string
	Emails     []string
	FormURL    string
	Score      int
	Chance     Chance
	Status     JobStatus
	SkipReason string
}

// JobID builds the natural key of a job record. Two posts from the same sender at
// the same minute share a key and overwrite each other.
func JobID(ts time.Time, sender string) string {
	return fmt.Sprintf("%s_%s", ts.Format(JobIDLayout), sender)
}

var companyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("chat-applier/company"))

// CompanyID derives a stable company id from its name, ignoring case and
// surrounding whitespace.
func CompanyID(name string) string {
	key := strings.ToLower(strings.Join(strings.Fields(name), " "))
	return uuid.NewSHA1(companyNamespace, []byte(key)).String()
}
