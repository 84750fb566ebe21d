package auth_test

import (
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	auth "github.com/saddlefit/go-auth"
	"github.com/stretchr/testify/assert"
)

func TestLoginRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload auth.LoginRequest
		wantErr bool
	}{
		{
			name:    "Email identifier",
			payload: auth.LoginRequest{Identifier: "rider@example.com", Password: "secret"},
		},
		{
			name:    "Username identifier is allowed",
			payload: auth.LoginRequest{Identifier: "rider", Password: "secret"},
		},
		{
			name:    "Missing identifier",
			payload: auth.LoginRequest{Password: "secret"},
			wantErr: true,
		},
		{
			name:    "Missing password",
			payload: auth.LoginRequest{Identifier: "rider"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterRequestValidate(t *testing.T) {
	valid := auth.RegisterRequest{
		Username:        "rider",
		Email:           "rider@example.com",
		Password:        "long-enough-password",
		ConfirmPassword: "long-enough-password",
	}

	t.Run("Valid payload", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("Invalid email", func(t *testing.T) {
		payload := valid
		payload.Email = "not-an-email"
		assert.Error(t, payload.Validate())
	})

	t.Run("Password too short", func(t *testing.T) {
		payload := valid
		payload.Password = "short"
		payload.ConfirmPassword = "short"
		assert.Error(t, payload.Validate())
	})

	t.Run("Mismatched confirmation", func(t *testing.T) {
		payload := valid
		payload.ConfirmPassword = "a-different-password"
		err := payload.Validate()
		assert.Error(t, err)

		fields := auth.FormatValidationErrorToMap(err)
		assert.Contains(t, fields, "confirm_password")
	})

	t.Run("Username is optional", func(t *testing.T) {
		payload := valid
		payload.Username = ""
		assert.NoError(t, payload.Validate())
	})
}

func TestLogoutRequestValidate(t *testing.T) {
	t.Run("Valid uuid", func(t *testing.T) {
		payload := auth.LogoutRequest{SessionID: "b2f39c63-07f5-4c6e-9f25-3f6b24c53c40"}
		assert.NoError(t, payload.Validate())
	})

	t.Run("Not a uuid", func(t *testing.T) {
		payload := auth.LogoutRequest{SessionID: "nope"}
		assert.Error(t, payload.Validate())
	})
}

func TestResetPasswordRequestValidate(t *testing.T) {
	valid := auth.ResetPasswordRequest{
		Hash:            "signed-token",
		Password:        "long-enough-password",
		ConfirmPassword: "long-enough-password",
	}

	t.Run("Valid payload", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("Missing hash", func(t *testing.T) {
		payload := valid
		payload.Hash = ""
		assert.Error(t, payload.Validate())
	})

	t.Run("Mismatched confirmation", func(t *testing.T) {
		payload := valid
		payload.ConfirmPassword = "a-different-password"
		assert.Error(t, payload.Validate())
	})
}

func TestValidateStringEquals(t *testing.T) {
	rule := auth.ValidateStringEquals("expected")

	assert.NoError(t, rule("expected"))
	assert.Error(t, rule("other"))
	assert.Error(t, rule(42))
}

func TestFormatValidationErrorToMap(t *testing.T) {
	t.Run("Flattens field errors", func(t *testing.T) {
		err := validation.Errors{
			"email":    validation.NewError("validation_required", "cannot be blank"),
			"password": validation.NewError("validation_length", "the length must be between 10 and 100"),
		}

		out := auth.FormatValidationErrorToMap(err)
		assert.Equal(t, "cannot be blank", out["email"])
		assert.Equal(t, "the length must be between 10 and 100", out["password"])
	})

	t.Run("Non validation errors keep a generic key", func(t *testing.T) {
		out := auth.FormatValidationErrorToMap(errors.New("boom"))
		assert.Equal(t, map[string]string{"validation": "boom"}, out)
	})
}
