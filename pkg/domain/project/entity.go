// Package project defines the Project domain entity: a tracked upstream
// SonarQube component reference. A project exclusively owns its findings and
// scans; deleting it cascades to both.
package project

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sonartrack/api/pkg/domain/shared"
)

// Credentials hold upstream authentication material. Token is preferred;
// Login/Password fall back to the session-cookie bootstrap. Secrets are
// encrypted at rest by the repository layer.
type Credentials struct {
	Token    string
	Login    string
	Password string
}

// IsZero reports whether no credential is configured.
func (c Credentials) IsZero() bool {
	return c.Token == "" && c.Login == ""
}

// Options control which optional collectors run during a sync.
type Options struct {
	QualityGate   bool
	Coverage      bool
	NewCodePeriod bool
	Hotspots      bool
}

// DefaultOptions enables everything except the new-code-period collector.
func DefaultOptions() Options {
	return Options{
		QualityGate: true,
		Coverage:    true,
		Hotspots:    true,
	}
}

// Project is a tracked upstream component.
type Project struct {
	ID           shared.ID
	Name         string
	BaseURL      string
	ComponentKey string
	Branch       string
	Credentials  Credentials
	Options      Options

	SyncEnabled  bool
	SyncSchedule string // cron expression, empty = manual only
	LastSyncAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// scheduleParser accepts standard 5-field cron expressions.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a cron expression with the same parser the
// scheduler uses.
func ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := scheduleParser.Parse(expr); err != nil {
		return fmt.Errorf("%w: cannot parse sync schedule: %v", shared.ErrValidation, err)
	}
	return nil
}

// New creates a project reference.
func New(name, baseURL, componentKey string) (*Project, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if err := validateBaseURL(baseURL); err != nil {
		return nil, err
	}
	if componentKey == "" {
		return nil, fmt.Errorf("%w: component key is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Project{
		ID:           shared.NewID(),
		Name:         name,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ComponentKey: componentKey,
		Options:      DefaultOptions(),
		SyncEnabled:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: base url is required", shared.ErrValidation)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base url must be an absolute http(s) url", shared.ErrValidation)
	}
	return nil
}

// SetSchedule enables scheduled syncs with the given cron expression.
func (p *Project) SetSchedule(expr string) error {
	if err := ValidateSchedule(expr); err != nil {
		return err
	}
	p.SyncSchedule = expr
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// SetCredentials replaces the upstream credentials.
func (p *Project) SetCredentials(c Credentials) {
	p.Credentials = c
	p.UpdatedAt = time.Now().UTC()
}

// RecordSync stores the instant of the last completed synchronization.
func (p *Project) RecordSync(at time.Time) {
	t := at
	p.LastSyncAt = &t
	p.UpdatedAt = at
}

// Validate checks invariants before persistence.
func (p *Project) Validate() error {
	if p.Name == "" || p.ComponentKey == "" {
		return fmt.Errorf("%w: name and component key are required", shared.ErrValidation)
	}
	if err := validateBaseURL(p.BaseURL); err != nil {
		return err
	}
	return ValidateSchedule(p.SyncSchedule)
}
