package roles

import (
	"fmt"
	"os"
	"strings"

	"modpulse/internal/model"

	"gopkg.in/yaml.v3"
)

// Job is a selectable game role.
type Job struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Department groups jobs that are banned together by a department ban.
type Department struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

type catalogFile struct {
	Jobs        []Job        `yaml:"jobs"`
	Departments []Department `yaml:"departments"`
}

// Catalog resolves role and department identifiers. It is immutable after
// construction.
type Catalog struct {
	jobs        map[string]Job
	departments map[string]Department
}

// NewCatalog builds a catalog from explicit descriptors.
func NewCatalog(jobs []Job, departments []Department) *Catalog {
	c := &Catalog{
		jobs:        make(map[string]Job, len(jobs)),
		departments: make(map[string]Department, len(departments)),
	}
	for _, j := range jobs {
		c.jobs[j.ID] = j
	}
	for _, d := range departments {
		c.departments[d.ID] = d
	}
	return c
}

// LoadCatalog reads job and department descriptors from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse role catalog: %w", err)
	}
	return NewCatalog(file.Jobs, file.Departments), nil
}

// TryIndex resolves a job id.
func (c *Catalog) TryIndex(id string) (Job, bool) {
	job, ok := c.jobs[id]
	return job, ok
}

// Department resolves a department id.
func (c *Catalog) Department(id string) (Department, bool) {
	dept, ok := c.departments[id]
	return dept, ok
}

// Jobs returns all known jobs.
func (c *Catalog) Jobs() []Job {
	out := make([]Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		out = append(out, j)
	}
	return out
}

// Kind tags which namespace a role-ban key lives in.
type Kind int

const (
	// KindJob is a ban on a job role, stored with the job namespace prefix.
	KindJob Kind = iota
	// KindOther is any other role-scoped ban sharing the same table.
	KindOther
)

// Ref is a typed reference to a bannable role, replacing prefix sniffing at
// the API boundary.
type Ref struct {
	Kind Kind
	ID   string
}

// JobRef builds a job-role reference.
func JobRef(id string) Ref {
	return Ref{Kind: KindJob, ID: id}
}

// Key returns the namespaced key stored in the role_bans table.
func (r Ref) Key() string {
	if r.Kind == KindJob {
		return model.JobPrefix + r.ID
	}
	return r.ID
}

// ParseKey splits a stored role key back into a typed reference.
func ParseKey(key string) Ref {
	if strings.HasPrefix(key, model.JobPrefix) {
		return Ref{Kind: KindJob, ID: key[len(model.JobPrefix):]}
	}
	return Ref{Kind: KindOther, ID: key}
}
