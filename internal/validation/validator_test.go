package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardboxapp/cardbox/internal/domain"
	domainerrors "github.com/cardboxapp/cardbox/internal/errors"
)

type sampleRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Target int    `json:"target" validate:"gte=1,lte=500"`
	Result string `json:"result" validate:"oneof=good bad"`
}

func TestValidate_Valid(t *testing.T) {
	v := New()
	err := v.Validate(sampleRequest{
		Email:  "user@example.com",
		Target: 20,
		Result: "good",
	})
	assert.NoError(t, err)
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	v := New()
	err := v.Validate(sampleRequest{
		Email:  "not-an-email",
		Target: 0,
		Result: "maybe",
	})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)

	fields, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "target")
	assert.Contains(t, fields, "result")
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be one of: good bad", fields["result"])
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	v := New()
	err := v.Validate(sampleRequest{Email: "", Target: 5, Result: "bad"})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	fields := domainErr.Details.(map[string]string)
	assert.Contains(t, fields, "email")
	assert.NotContains(t, fields, "Email")
}

func TestValidate_DomainSettings(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(domain.DefaultSettings()))

	bad := domain.DefaultSettings()
	bad.Box1TargetSize = 0
	bad.ReverseProbability = 1.5
	err := v.Validate(bad)
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	fields := domainErr.Details.(map[string]string)
	assert.Contains(t, fields, "box1_target_size")
	assert.Contains(t, fields, "reverse_probability")
}
