package records

import (
	"encoding/json"
	"strings"
)

type ContextKind string

const (
	KindPerson  ContextKind = "person"
	KindCompany ContextKind = "company"
	KindRaw     ContextKind = "raw"
)

// PersonContext is the summary of a candidate.
type PersonContext struct {
	Bio     string   `json:"bio" mapstructure:"bio"`
	Bullets []string `json:"bullets" mapstructure:"bullets"`
}

// CompanyContext is the summary of an employer.
type CompanyContext struct {
	Summary    string   `json:"summary" mapstructure:"summary"`
	Culture    string   `json:"culture" mapstructure:"culture"`
	Products   []string `json:"products" mapstructure:"products"`
	Highlights []string `json:"highlights" mapstructure:"highlights"`
}

// Context is the enriched summary of a profile or company. Exactly one of
// Person, Company or Raw is meaningful, selected by Kind.
type Context struct {
	Kind    ContextKind
	Person  *PersonContext
	Company *CompanyContext
	Raw     string
}

func NewPersonContext(p PersonContext) *Context {
	return &Context{Kind: KindPerson, Person: &p}
}

func NewCompanyContext(c CompanyContext) *Context {
	return &Context{Kind: KindCompany, Company: &c}
}

// RawContext wraps model output that could not be parsed into a structured summary.
func RawContext(text string) *Context {
	return &Context{Kind: KindRaw, Raw: text}
}

// AsPerson coerces any context variant into a bio with bullets. Raw text becomes
// the bio with no bullets.
func (c *Context) AsPerson() PersonContext {
	if c == nil {
		return PersonContext{}
	}
	switch c.Kind {
	case KindPerson:
		if c.Person != nil {
			return *c.Person
		}
	case KindCompany:
		if c.Company != nil {
			return PersonContext{Bio: c.Company.Summary, Bullets: c.Company.Highlights}
		}
	case KindRaw:
		return PersonContext{Bio: c.Raw}
	}
	return PersonContext{}
}

// String renders the context as prompt-friendly text.
func (c *Context) String() string {
	if c == nil {
		return ""
	}

	var b strings.Builder
	switch c.Kind {
	case KindPerson:
		if c.Person == nil {
			return ""
		}
		b.WriteString(c.Person.Bio)
		writeList(&b, "", c.Person.Bullets)
	case KindCompany:
		if c.Company == nil {
			return ""
		}
		b.WriteString(c.Company.Summary)
		if c.Company.Culture != "" {
			b.WriteString("\nCulture: " + c.Company.Culture)
		}
		writeList(&b, "Products:", c.Company.Products)
		writeList(&b, "Highlights:", c.Company.Highlights)
	case KindRaw:
		b.WriteString(c.Raw)
	}
	return strings.TrimSpace(b.String())
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	if title != "" {
		b.WriteString("\n" + title)
	}
	for _, item := range items {
		b.WriteString("\n- " + item)
	}
}

func (c Context) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindPerson:
		p := PersonContext{}
		if c.Person != nil {
			p = *c.Person
		}
		if p.Bullets == nil {
			p.Bullets = []string{}
		}
		return json.Marshal(p)
	case KindCompany:
		co := CompanyContext{}
		if c.Company != nil {
			co = *c.Company
		}
		return json.Marshal(co)
	default:
		return json.Marshal(map[string]string{"raw": c.Raw})
	}
}

// UnmarshalJSON infers the variant from the keys present. Anything that is not
// a recognizable object is kept verbatim as a raw context.
func (c *Context) UnmarshalJSON(data []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		*c = *RawContext(string(data))
		return nil
	}

	switch {
	case has(keys, "bio", "bullets"):
		var p PersonContext
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*c = *NewPersonContext(p)
	case has(keys, "summary", "culture", "products", "highlights"):
		var co CompanyContext
		if err := json.Unmarshal(data, &co); err != nil {
			return err
		}
		*c = *NewCompanyContext(co)
	case has(keys, "raw"):
		var raw struct {
			Raw string `json:"raw"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*c = *RawContext(raw.Raw)
	default:
		*c = *RawContext(string(data))
	}
	return nil
}

func has(keys map[string]json.RawMessage, names ...string) bool {
	for _, name := range names {
		if _, ok := keys[name]; ok {
			return true
		}
	}
	return false
}
