package core

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	errBadPhone := errors.New("bad phone")
	tests := []struct {
		name       string
		err        error
		wantMsg    string
		wantFields map[string]string
		wantIs     error
	}{
		{name: "empty", err: NewValidationError(nil), wantMsg: "invalid input"},
		{name: "cause", err: NewValidationError(errBadPhone), wantMsg: "bad phone", wantIs: errBadPhone},
		{
			name:       "fields",
			err:        NewValidationError(nil, FieldError{Field: "phone", Error: "invalid"}, FieldError{Field: "name", Error: "required"}),
			wantMsg:    "phone: invalid; name: required",
			wantFields: map[string]string{"phone": "invalid", "name": "required"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("failed! Error() = %q; want %q", got, tt.wantMsg)
			}
			var verr *ValidationError
			require.True(t, errors.As(tt.err, &verr))
			assert.Equal(t, tt.wantFields, verr.FieldMap())
			if tt.wantIs != nil && !errors.Is(tt.err, tt.wantIs) {
				t.Errorf("failed! errors.Is(%v, %v) = false; want true", tt.err, tt.wantIs)
			}
		})
	}
}

func TestTranslateValidationErrors(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	InitValidators(validate, translator)

	in := struct {
		Name  string `json:"name" validate:"required"`
		Phone string `json:"phone" validate:"required,e164"`
		Code  string `json:"-" validate:"omitempty,alphanum_"`
	}{Phone: "0810000001"}

	err := validate.Struct(in)
	vErrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok, "err = %v", err)

	got := TranslateValidationErrors(vErrs, translator).FieldMap()
	want := map[string]string{"name": requiredText, "phone": e164Text}
	assert.Equal(t, want, got)
}
