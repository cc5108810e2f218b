package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-connect/core"
)

func newValidator(t *testing.T) (*validator.Validate, ut.Translator) {
	t.Helper()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate, translator
}

func TestNewUser_validation(t *testing.T) {
	validate, translator := newValidator(t)

	valid := func() NewUser {
		return NewUser{
			Name:            "Amani Kabila",
			Username:        "amani",
			Email:           "amani@test.cd",
			Phone:           "+243810000001",
			Password:        "Lumumba#1960",
			PasswordConfirm: "Lumumba#1960",
			Roles:           []string{RoleTeacher},
		}
	}

	tests := []struct {
		name      string
		mutate    func(nu *NewUser)
		wantField string
		wantText  string
	}{
		{name: "valid", mutate: func(nu *NewUser) {}},
		{
			name:      "no username nor email",
			mutate:    func(nu *NewUser) { nu.Username, nu.Email = "", "" },
			wantField: "username", wantText: usernameOrEmailText,
		},
		{name: "invalid phone", mutate: func(nu *NewUser) { nu.Phone = "0810000001" }, wantField: "phone", wantText: e164TextForTests},
		{name: "invalid roles", mutate: func(nu *NewUser) { nu.Roles = []string{"lol:"} }, wantField: "roles", wantText: allRolesText},
		{
			name:      "short password",
			mutate:    func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ab#1", "Ab#1" },
			wantField: "password", wantText: pwdMinLenText,
		},
		{
			name:      "whitespace",
			mutate:    func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Lumumba #1960", "Lumumba #1960" },
			wantField: "password", wantText: pwdNoSpaceText,
		},
		{
			name:      "all numeric",
			mutate:    func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "19600630", "19600630" },
			wantField: "password", wantText: pwdNotAllNumText,
		},
		{
			name:      "not complex",
			mutate:    func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "lumumba1960", "lumumba1960" },
			wantField: "password", wantText: pwdComplexityText,
		},
		{
			name:      "similar to username",
			mutate:    func(nu *NewUser) { nu.Username, nu.Password, nu.PasswordConfirm = "lumumba60", "Lumumba#60", "Lumumba#60" },
			wantField: "password", wantText: pwdAttrSimText,
		},
		{
			name:      "common",
			mutate:    func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "P@ssw0rd1", "P@ssw0rd1" },
			wantField: "password", wantText: pwdNoCommonText,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.mutate(&nu)
			err := validate.Struct(nu)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("failed! unexpected error = %v", err)
				}
				return
			}

			vErrs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("failed! err = %v; want validator.ValidationErrors", err)
			}
			for _, vErr := range vErrs {
				if vErr.Field() == tt.wantField {
					if got := vErr.Translate(translator); got != tt.wantText {
						t.Errorf("failed! error = %q; want %q", got, tt.wantText)
					}
					return
				}
			}
			t.Errorf("failed! no error on field %q: %v", tt.wantField, err)
		})
	}
}

const e164TextForTests = "must be a phone number in international format, e.g. +243810000000"
