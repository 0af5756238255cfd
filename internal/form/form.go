// internal/form/form.go
package form

import (
	"fmt"
	"regexp"
	"strings"

	"referralbridge/internal/models"
)

// Field names accepted by Set/Validate.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldCompany = "targetCompany"
	FieldJobID   = "jobId"
	FieldResume  = "resume"
)

var allowedResumeTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// FieldError is a field-level validation message. It blocks advancement but is
// user-correctable; it never reaches the network.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Form holds the draft field values and their validation state. It has no side
// effects beyond in-memory mutation.
type Form struct {
	draft models.ReferralRequestDraft
}

func New() *Form {
	return &Form{}
}

// FromDraft seeds a form with an already-populated draft.
func FromDraft(draft models.ReferralRequestDraft) *Form {
	return &Form{draft: draft}
}

func (f *Form) SetName(v string)          { f.draft.Name = strings.TrimSpace(v) }
func (f *Form) SetEmail(v string)         { f.draft.Email = strings.TrimSpace(v) }
func (f *Form) SetTargetCompany(v string) { f.draft.TargetCompany = strings.TrimSpace(v) }
func (f *Form) SetJobID(v string)         { f.draft.JobID = strings.TrimSpace(v) }

func (f *Form) SetResume(r *models.ResumeHandle) { f.draft.Resume = r }

func (f *Form) Name() string          { return f.draft.Name }
func (f *Form) Email() string         { return f.draft.Email }
func (f *Form) TargetCompany() string { return f.draft.TargetCompany }
func (f *Form) JobID() string         { return f.draft.JobID }

// Draft returns a copy of the current field values.
func (f *Form) Draft() models.ReferralRequestDraft {
	return f.draft
}

// ValidateField checks a single field and returns a field-level message when
// invalid. It never panics on missing values.
func (f *Form) ValidateField(field string) *FieldError {
	switch field {
	case FieldName:
		if len(f.draft.Name) < 2 {
			return &FieldError{Field: FieldName, Message: "name must be at least 2 characters"}
		}
	case FieldEmail:
		if !IsValidEmail(f.draft.Email) {
			return &FieldError{Field: FieldEmail, Message: "enter a valid email address"}
		}
	case FieldCompany:
		if f.draft.TargetCompany == "" {
			return &FieldError{Field: FieldCompany, Message: "target company is required"}
		}
	case FieldJobID:
		if f.draft.JobID == "" {
			return &FieldError{Field: FieldJobID, Message: "job identifier is required"}
		}
	case FieldResume:
		r := f.draft.Resume
		if r == nil || r.Size <= 0 {
			return &FieldError{Field: FieldResume, Message: "resume file is required"}
		}
		if !allowedResumeTypes[r.MediaType] {
			return &FieldError{Field: FieldResume, Message: "resume must be a PDF or DOCX file"}
		}
	}
	return nil
}

// Validate checks every field and returns all failures.
func (f *Form) Validate() []FieldError {
	var errs []FieldError
	for _, field := range []string{FieldName, FieldEmail, FieldCompany, FieldJobID, FieldResume} {
		if err := f.ValidateField(field); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// IsValidEmail reports whether the address has an RFC-shape local@domain.tld form.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
