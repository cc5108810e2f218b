package messaging

import (
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-connect/core"
)

var (
	tmplNameTag   = "tmplname"
	tmplNameText  = "only lowercase alphanumeric characters and underscores are allowed"
	tmplNameRegex = regexp.MustCompile(`^[a-z0-9_]+$`)

	tmplPlaceholdersTag  = "tmplplaceholders"
	tmplPlaceholdersText = "placeholders must be numbered from {{1}} without gaps"

	tmplVarsTag  = "tmplvars"
	tmplVarsText = "variables must not be empty"
)

// InitValidators registers the messaging validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(tmplNameTag, tmplNameValidation)
	core.RegisterCustomTranslation(validate, translator, tmplNameTag, tmplNameText)

	_ = validate.RegisterValidation(tmplPlaceholdersTag, tmplPlaceholdersValidation)
	core.RegisterCustomTranslation(validate, translator, tmplPlaceholdersTag, tmplPlaceholdersText)

	_ = validate.RegisterValidation(tmplVarsTag, tmplVarsValidation)
	core.RegisterCustomTranslation(validate, translator, tmplVarsTag, tmplVarsText)
}

func tmplNameValidation(fl validator.FieldLevel) bool {
	return tmplNameRegex.MatchString(fl.Field().String())
}

// tmplPlaceholdersValidation checks that body placeholders are {{1}}..{{n}}.
func tmplPlaceholdersValidation(fl validator.FieldLevel) bool {
	for i, idx := range placeholderIndexes(fl.Field().String()) {
		if idx != i+1 {
			return false
		}
	}
	return true
}

func tmplVarsValidation(fl validator.FieldLevel) bool {
	vars, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, v := range vars {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// NewConversation contains information needed to start a conversation with a phone number.
type NewConversation struct {
	Phone string `json:"phone" validate:"required,e164"`
}

func (nc *NewConversation) Validate(validate *validator.Validate, defaultCC string) error {
	nc.Phone = core.NormalizePhone(nc.Phone, defaultCC)
	return validate.Struct(nc)
}

// NewTextMessage is a freeform message written by an operator.
type NewTextMessage struct {
	Content string `json:"content" validate:"required,max=1600"`
}

func (nm *NewTextMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}

// NewTemplateMessage is a template message sent by an operator.
type NewTemplateMessage struct {
	Template  string   `json:"template" validate:"required"`
	Variables []string `json:"variables" validate:"omitempty,tmplvars"`
}

func (nm *NewTemplateMessage) Validate(validate *validator.Validate) error {
	nm.Template = core.CleanString(nm.Template, true /* lower */)
	return validate.Struct(nm)
}

// NewTemplate contains information needed to register a provider template.
type NewTemplate struct {
	Name       string           `json:"name" validate:"required,max=128,tmplname"`
	ContentSID string           `json:"content_sid" validate:"omitempty,alphanum,max=64"`
	Body       string           `json:"body" validate:"required,max=1024,tmplplaceholders"`
	Language   string           `json:"language" validate:"omitempty,max=16"`
	Category   TemplateCategory `json:"category" validate:"omitempty,oneof=utility marketing authentication"`
	Status     TemplateStatus   `json:"status" validate:"omitempty,oneof=approved pending rejected"`
}

func (nt *NewTemplate) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name, true /* lower */)
	nt.ContentSID = core.CleanString(nt.ContentSID)
	nt.Body = core.CleanString(nt.Body)
	nt.Language = core.CleanString(nt.Language, true /* lower */)
	return validate.Struct(nt)
}
