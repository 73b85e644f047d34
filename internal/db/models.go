package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session status values. Transitions are one-directional:
// pending -> running -> completed | failed.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Supported uploaded-document kinds
const (
	FileTypePDF = "pdf"
	FileTypeTXT = "txt"
)

// JSONB represents a PostgreSQL jsonb column
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
	return json.Unmarshal(bytes, j)
}

// StringList represents an ordered jsonb array of strings
type StringList []string

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(l))
}

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	return json.Unmarshal(bytes, l)
}

// ResearchSession is one query-to-report execution unit
type ResearchSession struct {
	ID       uuid.UUID  `db:"id"`
	UserID   string     `db:"user_id"`
	ParentID *uuid.UUID `db:"parent_id"`

	Query   string `db:"query"`
	Status  string `db:"status"`
	TraceID string `db:"trace_id"`

	// Context copied from the parent session at creation time
	ParentSummary string `db:"parent_summary"`

	// Results
	FinalReport string     `db:"final_report"`
	Summary     string     `db:"summary"`
	Sources     StringList `db:"sources"`

	ErrorMessage string     `db:"error_message"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	CompletedAt  *time.Time `db:"completed_at"`
}

// ReasoningStep is an append-only, high-level reasoning log entry.
// StepIndex is the step's position in the trail as the engine reported it.
type ReasoningStep struct {
	ID          uuid.UUID `db:"id"`
	SessionID   uuid.UUID `db:"session_id"`
	StepIndex   int       `db:"step_index"`
	StepType    string    `db:"step_type"`
	Description string    `db:"description"`
	Metadata    JSONB     `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
}

// UploadedDocument is a file attached to a session for context injection.
// ExtractedText and Summary are filled in once by document processing.
type UploadedDocument struct {
	ID        uuid.UUID `db:"id"`
	SessionID uuid.UUID `db:"session_id"`

	FileName string `db:"file_name"`
	FileType string `db:"file_type"`
	FilePath string `db:"file_path"`
	FileSize int64  `db:"file_size"`

	ExtractedText string `db:"extracted_text"`
	Summary       string `db:"summary"`
	ErrorMessage  string `db:"error_message"`

	UploadedAt  time.Time  `db:"uploaded_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}

// CostRecord tracks token usage and estimated cost, one-to-one with a session
type CostRecord struct {
	SessionID        uuid.UUID       `db:"session_id"`
	ModelName        string          `db:"model_name"`
	InputTokens      int             `db:"input_tokens"`
	OutputTokens     int             `db:"output_tokens"`
	TotalTokens      int             `db:"total_tokens"`
	EstimatedCostUSD decimal.Decimal `db:"estimated_cost_usd"`
	CreatedAt        time.Time       `db:"created_at"`
}

// SummaryRecord stores the session summary plus its key findings,
// one-to-one with a session
type SummaryRecord struct {
	SessionID   uuid.UUID  `db:"session_id"`
	Content     string     `db:"content"`
	KeyFindings StringList `db:"key_findings"`
	CreatedAt   time.Time  `db:"created_at"`
}
