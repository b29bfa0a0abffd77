package leads

import (
	"encoding/json"
	"fmt"
	"time"
)

// Lead is a captured contact submission.
//
// Invariants:
// - Email is unique across all leads (enforced by the store, normalized to lower case).
// - UpdatedAt >= CreatedAt; both UTC with microsecond precision.
// - AdditionalData is always a JSON object, never nil once loaded.
// - Request references are advisory ids of audit records; resolve them
//   explicitly through the audit service when needed.
type Lead struct {
	ID             int64          `json:"id" db:"id"`
	FirstName      string         `json:"firstName" db:"first_name"`
	LastName       string         `json:"lastName" db:"last_name"`
	Email          string         `json:"email" db:"email"`
	Phone          string         `json:"phone" db:"phone"`
	DateOfBirth    Date           `json:"dateOfBirth" db:"date_of_birth"`
	AdditionalData map[string]any `json:"additionalData" db:"additional_data"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	CreatedByRequestID      *int64 `json:"createdByRequestId,omitempty" db:"created_by_request_id"`
	LastModifiedByRequestID *int64 `json:"lastModifiedByRequestId,omitempty" db:"last_modified_by_request_id"`
}

// CreateLeadInput is the decoded intake payload.
type CreateLeadInput struct {
	FirstName      string         `json:"firstName" validate:"required,nocontrol,min=2,max=255"`
	LastName       string         `json:"lastName" validate:"required,nocontrol,min=2,max=255"`
	Email          string         `json:"email" validate:"required,nocontrol,max=255,email"`
	Phone          string         `json:"phone" validate:"required,phone"`
	DateOfBirth    string         `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	AdditionalData map[string]any `json:"additionalData"`
}

// Date is a calendar date without a time of day, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t.UTC()}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	*d = parsed
	return nil
}

// SortField is the allow-listed set of list orderings.
type SortField string

const (
	SortByCreatedAt SortField = "createdAt"
	SortByFirstName SortField = "firstName"
	SortByLastName  SortField = "lastName"
	SortByEmail     SortField = "email"
)

const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

// ListQuery is the boundary-facing list request. Page is 1-based.
type ListQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// ListParams is a validated ListQuery translated for the store.
type ListParams struct {
	SortBy SortField
	Desc   bool
	Offset int
	Limit  int
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type ListResult struct {
	Items      []Lead     `json:"items"`
	Pagination Pagination `json:"pagination"`
}
