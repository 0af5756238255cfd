// internal/form/form_test.go
package form

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"referralbridge/internal/models"
)

func validResume() *models.ResumeHandle {
	return &models.ResumeHandle{
		Filename:  "resume.pdf",
		MediaType: "application/pdf",
		Size:      2048,
		Content:   []byte("%PDF-1.4"),
	}
}

func filledForm() *Form {
	f := New()
	f.SetName("Jane Seeker")
	f.SetEmail("jane@example.com")
	f.SetTargetCompany("Acme Corp")
	f.SetJobID("JOB-42")
	f.SetResume(validResume())
	return f
}

// ==========================
// Field Validation Tests
// ==========================

func TestValidateField_Name(t *testing.T) {
	f := New()
	f.SetName("J")
	err := f.ValidateField(FieldName)
	assert.NotNil(t, err)
	assert.Equal(t, FieldName, err.Field)

	f.SetName("Jo")
	assert.Nil(t, f.ValidateField(FieldName))
}

func TestValidateField_Email(t *testing.T) {
	f := New()

	for _, bad := range []string{"", "plain", "a@b", "a b@c.com", "@example.com"} {
		f.SetEmail(bad)
		assert.NotNil(t, f.ValidateField(FieldEmail), "email %q should be rejected", bad)
	}

	for _, good := range []string{"jane@example.com", "j.s+tag@sub.example.co.in"} {
		f.SetEmail(good)
		assert.Nil(t, f.ValidateField(FieldEmail), "email %q should be accepted", good)
	}
}

func TestValidateField_Resume(t *testing.T) {
	f := New()

	assert.NotNil(t, f.ValidateField(FieldResume), "missing resume should be rejected")

	f.SetResume(&models.ResumeHandle{Filename: "x.txt", MediaType: "text/plain", Size: 10})
	err := f.ValidateField(FieldResume)
	assert.NotNil(t, err)
	assert.Contains(t, err.Message, "PDF or DOCX")

	f.SetResume(&models.ResumeHandle{Filename: "x.pdf", MediaType: "application/pdf", Size: 0})
	assert.NotNil(t, f.ValidateField(FieldResume), "empty file should be rejected")

	f.SetResume(validResume())
	assert.Nil(t, f.ValidateField(FieldResume))

	f.SetResume(&models.ResumeHandle{
		Filename:  "x.docx",
		MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Size:      100,
	})
	assert.Nil(t, f.ValidateField(FieldResume))
}

func TestValidate_AllFields(t *testing.T) {
	f := New()
	errs := f.Validate()
	assert.Len(t, errs, 5, "every field of an empty form is invalid")

	f = filledForm()
	assert.Empty(t, f.Validate())
}

func TestValidate_ReportsEveryFailure(t *testing.T) {
	f := filledForm()
	f.SetEmail("nope")
	f.SetJobID("")

	errs := f.Validate()
	assert.Len(t, errs, 2)

	fields := []string{errs[0].Field, errs[1].Field}
	assert.Contains(t, fields, FieldEmail)
	assert.Contains(t, fields, FieldJobID)
}

func TestSetters_TrimWhitespace(t *testing.T) {
	f := New()
	f.SetName("  Jane  ")
	f.SetEmail(" jane@example.com ")
	assert.Equal(t, "Jane", f.Name())
	assert.Equal(t, "jane@example.com", f.Email())
}

func TestDraft_IsACopy(t *testing.T) {
	f := filledForm()
	draft := f.Draft()
	f.SetName("Changed")
	assert.Equal(t, "Jane Seeker", draft.Name)
}
