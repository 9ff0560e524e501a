package plan

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantime/internal/model"
)

const sampleYAML = `
name: Spring release
phases:
  - id: dev
    name: Development
    start_date: 2025-03-10
    end_date: 2025-03-15
    color: "#4f8ef7"
  - id: qa
    name: QA
    start_date: 2025-03-20
    end_date: 2025-03-18
    color: "#f7a24f"
references:
  - date: 2025-04-01
    title: GA
    milestone_color: "#d33"
calendars:
  - id: team
    name: Team
    days:
      - id: offsite
        name: Offsite
        date: 2025-05-02
        type: special
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "Spring release", p.Name)
	require.Len(t, p.Phases, 2)
	assert.Equal(t, "2025-03-10", p.Phases[0].StartDate)
	assert.Equal(t, "#4f8ef7", p.Phases[0].Color)
	require.Len(t, p.References, 1)
	assert.Equal(t, "#d33", p.References[0].MilestoneColor)
	require.Len(t, p.Calendars, 1)
	assert.Equal(t, model.DayTypeSpecial, p.Calendars[0].Days[0].Type)
}

func TestValidatePhase(t *testing.T) {
	r, err := ValidatePhase(model.PlanPhase{ID: "a", StartDate: "2025-03-10", EndDate: "2025-03-10"}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, r.Start, r.End)

	_, err = ValidatePhase(model.PlanPhase{ID: "b", StartDate: "2025-03-10", EndDate: "2025-03-09"}, time.UTC)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "b", verr.PhaseID)
	assert.Equal(t, "endDate", verr.Field)

	_, err = ValidatePhase(model.PlanPhase{ID: "c", StartDate: "soon", EndDate: "2025-03-09"}, time.UTC)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "startDate", verr.Field)
}

func TestPlanValidateJoinsErrors(t *testing.T) {
	p, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	err = p.Validate(time.UTC)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "qa", verr.PhaseID)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans", "plan.yaml")

	empty, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, empty.Phases)

	p, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.NoError(t, Save(path, p))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}
