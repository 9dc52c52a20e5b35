// Package apperrors defines the error taxonomy shared across the engine.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrRoleNotFound indicates a role name with no stored configuration.
	ErrRoleNotFound = errors.New("role not found")

	// ErrPlanNotFound indicates a role that has no persisted analysis plan yet.
	ErrPlanNotFound = errors.New("analysis plan not found")

	// ErrChartNotFound indicates a chart id absent from the role's plan.
	ErrChartNotFound = errors.New("chart not found")

	// ErrKPINotFound indicates a KPI id absent from the role's plan.
	ErrKPINotFound = errors.New("kpi not found")

	// ErrNoDataTables indicates a role store with no importable data tables.
	ErrNoDataTables = errors.New("no data tables found in role database")

	// ErrInsightNotFound indicates a chart id with no stored insights.
	ErrInsightNotFound = errors.New("no insights found for chart")

	// ErrActionNotFound indicates an action id absent from the role's workspace.
	ErrActionNotFound = errors.New("action not found")

	// ErrNoteNotFound indicates a note id absent from the action's notes.
	ErrNoteNotFound = errors.New("note not found")
)

// ImportError reports a failure while copying a single source table.
// The whole import aborts when one table fails; Table names the culprit.
type ImportError struct {
	Table string
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("error importing table %s: %v", e.Table, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// NewImportError wraps err with the failing table name.
func NewImportError(table string, err error) *ImportError {
	return &ImportError{Table: table, Err: err}
}

// GenerationError reports unparseable or structurally invalid LLM output
// during plan generation. Stage identifies which prompt failed
// ("concepts", "kpis", "charts", "visualization").
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("plan generation failed at %s stage: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError wraps err with the generation stage that produced it.
func NewGenerationError(stage string, err error) *GenerationError {
	return &GenerationError{Stage: stage, Err: err}
}
