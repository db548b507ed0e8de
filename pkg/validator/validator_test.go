package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name         string `validate:"required,max=10"`
	Severity     string `validate:"omitempty,severity"`
	LocalStatus  string `validate:"omitempty,local_status"`
	Type         string `validate:"omitempty,finding_type"`
	ComponentKey string `validate:"omitempty,component_key"`
	Schedule     string `validate:"omitempty,cron_schedule"`
}

func TestStruct(t *testing.T) {
	v := New()

	t.Run("valid struct passes", func(t *testing.T) {
		err := v.Struct(sampleRequest{
			Name:         "payments",
			Severity:     "HIGH",
			LocalStatus:  "triaged",
			Type:         "VULNERABILITY",
			ComponentKey: "com.example:payments",
			Schedule:     "0 2 * * *",
		})
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := v.Struct(sampleRequest{})

		var fieldErrs FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		require.Len(t, fieldErrs, 1)
		assert.Equal(t, "name", fieldErrs[0].Field)
		assert.Equal(t, "is required", fieldErrs[0].Message)
	})

	t.Run("unknown severity", func(t *testing.T) {
		err := v.Struct(sampleRequest{Name: "p", Severity: "EXTREME"})

		var fieldErrs FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Equal(t, "severity", fieldErrs[0].Field)
		assert.Equal(t, "must be a known severity", fieldErrs[0].Message)
	})

	t.Run("unknown workflow status", func(t *testing.T) {
		err := v.Struct(sampleRequest{Name: "p", LocalStatus: "done"})

		var fieldErrs FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Equal(t, "must be a known workflow status", fieldErrs[0].Message)
	})

	t.Run("component key rejects spaces", func(t *testing.T) {
		err := v.Struct(sampleRequest{Name: "p", ComponentKey: "com example"})

		var fieldErrs FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Equal(t, "componentkey", fieldErrs[0].Field)
	})

	t.Run("invalid cron expression", func(t *testing.T) {
		err := v.Struct(sampleRequest{Name: "p", Schedule: "61 * * * *"})

		var fieldErrs FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Equal(t, "must be a valid cron expression", fieldErrs[0].Message)
	})

	t.Run("collects several errors", func(t *testing.T) {
		err := v.Struct(sampleRequest{Name: "way-too-long-name", Severity: "nope"})

		var fieldErrs FieldErrors
		require.True(t, errors.As(err, &fieldErrs))
		assert.Len(t, fieldErrs, 2)
		assert.Contains(t, err.Error(), "name: exceeds the maximum 10")
	})
}
