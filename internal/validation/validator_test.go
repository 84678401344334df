package validation_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/Colorex-team/Colorex-System/internal/errors"
	"github.com/Colorex-team/Colorex-System/internal/validation"
)

type testInput struct {
	Owner string    `json:"owner_id" validate:"required"`
	Plan  string    `json:"plan" validate:"oneof=monthly yearly"`
	Tags  []string  `json:"tags" validate:"max=2"`
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
	Note  string    `validate:"max=5"`
}

func validInput() testInput {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return testInput{Owner: "u1", Plan: "monthly", Start: now, End: now.Add(time.Hour)}
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Validate(validInput()))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		mutate    func(*testInput)
		wantField string
	}{
		{"missing required field", func(in *testInput) { in.Owner = "" }, "owner_id"},
		{"not one of", func(in *testInput) { in.Plan = "weekly" }, "plan"},
		{"too many tags", func(in *testInput) { in.Tags = []string{"a", "b", "c"} }, "tags"},
		{"end before start", func(in *testInput) { in.End = in.Start.Add(-time.Hour) }, "end"},
		{"untagged field uses struct name", func(in *testInput) { in.Note = "too long" }, "Note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			err := v.Validate(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)

			var domainErr *domainerrors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
			assert.Contains(t, domainErr.Message, tt.wantField)

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.wantField)
		})
	}
}

func TestValidator_NonStruct(t *testing.T) {
	err := validation.New().Validate("not a struct")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}
