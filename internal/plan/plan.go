// Package plan loads release plans and validates their phases.
package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"plantime/internal/dates"
	"plantime/internal/model"
)

// Plan is a release plan document.
type Plan struct {
	Name       string                `yaml:"name" json:"name"`
	Phases     []model.PlanPhase     `yaml:"phases" json:"phases"`
	References []model.PlanReference `yaml:"references" json:"references"`
	// Calendars are inline special-day calendars; holiday feeds from the
	// configuration are merged in at serve time.
	Calendars []model.Calendar `yaml:"calendars" json:"calendars"`
}

// ValidationError describes an invalid phase date range.
type ValidationError struct {
	PhaseID string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.PhaseID == "" {
		return fmt.Sprintf("plan: phase %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("plan: phase %q %s: %s", e.PhaseID, e.Field, e.Reason)
}

// PhaseRange is the parsed, validated date range of a phase.
type PhaseRange struct {
	Start time.Time
	End   time.Time
}

// ValidatePhase checks that both dates parse and that EndDate is not before
// StartDate. Dates are parsed in loc (nil means time.Local). Errors are
// *ValidationError.
func ValidatePhase(p model.PlanPhase, loc *time.Location) (PhaseRange, error) {
	start, err := dates.ParseISODate(p.StartDate, loc)
	if err != nil {
		return PhaseRange{}, &ValidationError{PhaseID: p.ID, Field: "startDate", Reason: fmt.Sprintf("invalid date %q", p.StartDate)}
	}
	end, err := dates.ParseISODate(p.EndDate, loc)
	if err != nil {
		return PhaseRange{}, &ValidationError{PhaseID: p.ID, Field: "endDate", Reason: fmt.Sprintf("invalid date %q", p.EndDate)}
	}
	if end.Before(start) {
		return PhaseRange{}, &ValidationError{PhaseID: p.ID, Field: "endDate", Reason: "must not be before startDate"}
	}
	return PhaseRange{Start: start, End: end}, nil
}

// Validate checks every phase and returns the joined errors, if any.
func (p *Plan) Validate(loc *time.Location) error {
	var errs []error
	for _, ph := range p.Phases {
		if _, err := ValidatePhase(ph, loc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Parse decodes a YAML plan document.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan: decode: %w", err)
	}
	return &p, nil
}

// Load reads a plan from path. A missing file yields an empty plan so a
// fresh installation can serve an empty timeline.
func Load(path string) (*Plan, error) {
	if path == "" {
		return nil, errors.New("plan: path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Plan{}, nil
		}
		return nil, fmt.Errorf("plan: read: %w", err)
	}
	return Parse(data)
}

// Save writes p to path atomically via a temp file and rename.
func Save(path string, p *Plan) error {
	if path == "" {
		return errors.New("plan: path is empty")
	}
	if p == nil {
		return errors.New("plan: plan is nil")
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("plan: encode: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".plantime-plan-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
