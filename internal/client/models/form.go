package models

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

var (
	ErrInvalidForm  = errors.New("invalid form")
	ErrUnknownField = errors.New("field not declared by form")
)

// Field names an input of an auth form.
type Field string

const (
	FieldFullName  Field = "full_name"
	FieldEmail     Field = "email"
	FieldPassword  Field = "password"
	FieldPassword2 Field = "password2"
)

// FieldValue is one {field, value} change event coming from an input.
type FieldValue struct {
	Field Field
	Value string
}

// FieldErrors maps a field to its validation messages.
type FieldErrors map[Field][]string

func (e FieldErrors) add(f Field, msg string) { e[f] = append(e[f], msg) }

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e[Field(f)], "; ")))
	}
	return "invalid form: " + strings.Join(parts, ", ")
}

func (e FieldErrors) Is(target error) bool { return target == ErrInvalidForm }

func (e FieldErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Form is implemented by the auth forms.
type Form interface {
	Set(f Field, value string) error
	Validate() error
}

// Apply feeds change events into form in order and stops at the first
// rejected field.
func Apply(form Form, changes ...FieldValue) error {
	for _, c := range changes {
		if err := form.Set(c.Field, c.Value); err != nil {
			return err
		}
	}
	return nil
}

// LoginForm holds the login inputs.
type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (l *LoginForm) Set(f Field, value string) error {
	switch f {
	case FieldEmail:
		l.Email = strings.TrimSpace(value)
	case FieldPassword:
		l.Password = value
	default:
		return fmt.Errorf("%w: login form has no %q", ErrUnknownField, f)
	}
	return nil
}

func (l *LoginForm) Validate() error {
	errs := FieldErrors{}
	validateEmail(errs, l.Email)
	if l.Password == "" {
		errs.add(FieldPassword, "required")
	}
	return errs.orNil()
}

// RegisterForm holds the registration inputs.
type RegisterForm struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

func (r *RegisterForm) Set(f Field, value string) error {
	switch f {
	case FieldFullName:
		r.FullName = strings.TrimSpace(value)
	case FieldEmail:
		r.Email = strings.TrimSpace(value)
	case FieldPassword:
		r.Password = value
	case FieldPassword2:
		r.Password2 = value
	default:
		return fmt.Errorf("%w: register form has no %q", ErrUnknownField, f)
	}
	return nil
}

func (r *RegisterForm) Validate() error {
	errs := FieldErrors{}
	if r.FullName == "" {
		errs.add(FieldFullName, "required")
	}
	validateEmail(errs, r.Email)
	if r.Password == "" {
		errs.add(FieldPassword, "required")
	}
	if r.Password != r.Password2 {
		errs.add(FieldPassword2, "passwords do not match")
	}
	return errs.orNil()
}

// Login returns the credentials part of the registration.
func (r *RegisterForm) Login() LoginForm {
	return LoginForm{Email: r.Email, Password: r.Password}
}

func validateEmail(errs FieldErrors, email string) {
	if email == "" {
		errs.add(FieldEmail, "required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		errs.add(FieldEmail, "not a valid address")
	}
}
