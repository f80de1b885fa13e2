package httpserver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const passwordSpecials = "@$!%*?&"

// newValidator returns a validator with the strongpw rule registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("strongpw", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
	return v
}

// strongPassword requires upper, lower, digit and special characters from a fixed alphabet.
func strongPassword(pw string) bool {
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return upper && lower && digit && special
}

// validationMessage turns validator output into a single client-facing line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return "please provide email or phone"
	case "email":
		return "invalid email format"
	case "strongpw":
		return "password should have at least 1 upper case letter, 1 lower case letter, 1 number and 1 special character"
	case "len":
		return fmt.Sprintf("%s must have %s digits", field, fe.Param())
	case "numeric":
		return field + " must contain digits only"
	case "min", "max":
		return fmt.Sprintf("%s length is out of range", field)
	default:
		return "invalid " + field
	}
}

// parsePhone converts a validated digit string; empty yields 0.
func parsePhone(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required,len=10,numeric"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8,max=25,strongpw"`
}

type loginRequest struct {
	Phone    string `json:"phone" validate:"required_without=Email,omitempty,len=10,numeric"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8,max=25"`
}

type sendOTPRequest struct {
	Phone string `json:"phone" validate:"required_without=Email,omitempty,min=8,max=15,numeric"`
	Email string `json:"email" validate:"omitempty,email"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone" validate:"required_without=Email,omitempty,min=8,max=15,numeric"`
	Email string `json:"email" validate:"omitempty,email"`
	OTP   string `json:"otp" validate:"required,len=4,numeric"`
}

type resetPasswordRequest struct {
	Phone    string `json:"phone" validate:"required_without=Email,omitempty,min=8,max=15,numeric"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8,max=25,strongpw"`
}

type reportSpamRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}
