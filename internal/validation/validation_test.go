package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name" validate:"notblank"`
	Phone string `json:"phone" validate:"omitempty,eg_phone"`
	Stage string `json:"stage" validate:"required,stage"`
	Email string `json:"email" validate:"required,email"`
}

func TestValidator_Struct(t *testing.T) {
	v := New()

	t.Run("valid", func(t *testing.T) {
		err := v.Struct(payload{Name: "Sara", Phone: "01012345678", Stage: StagePrep, Email: "sara@example.com"})
		assert.NoError(t, err)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		err := v.Struct(payload{Name: "   ", Phone: "0191234567", Stage: "COLLEGE", Email: "nope"})
		require.Error(t, err)

		var fe FieldErrors
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "this field cannot be blank", fe["name"])
		assert.Contains(t, fe["phone"], "11 digits")
		assert.Equal(t, "stage must be one of GRADE6, PREP", fe["stage"])
		assert.Contains(t, fe["email"], "email")
	})
}

func TestPhonePattern(t *testing.T) {
	valid := []string{"01012345678", "01112345678", "01212345678", "01512345678"}
	invalid := []string{"01312345678", "0101234567", "010123456789", "+201012345678", "02012345678"}

	v := New()
	for _, p := range valid {
		assert.NoError(t, v.Var(p, "eg_phone"), p)
	}
	for _, p := range invalid {
		assert.Error(t, v.Var(p, "eg_phone"), p)
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Sun & Tue", CleanText("  <b>Sun</b> &amp; Tue "))
	assert.Equal(t, "", CleanText(`<script>alert(1)</script>`))
}
