package messaging

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

type (
	TemplateStatus   string
	TemplateCategory string
)

const (
	TemplateApproved TemplateStatus = "approved"
	TemplatePending  TemplateStatus = "pending"
	TemplateRejected TemplateStatus = "rejected"

	CategoryUtility        TemplateCategory = "utility"
	CategoryMarketing      TemplateCategory = "marketing"
	CategoryAuthentication TemplateCategory = "authentication"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*(\d+)\s*\}\}`)

// Template is a pre-approved message, the only kind of message that may be sent outside the
// messaging window. Body placeholders are positional: {{1}}, {{2}}...
type Template struct {
	Name       string           `json:"name"`
	ContentSID string           `json:"content_sid"` // provider content id
	Body       string           `json:"body"`
	Language   string           `json:"language"`
	Category   TemplateCategory `json:"category"`
	Status     TemplateStatus   `json:"status"`
	CreatedAt  time.Time        `json:"created_at"` // UTC
	UpdatedAt  time.Time        `json:"updated_at"` // UTC
}

func (t Template) IsApproved() bool { return t.Status == TemplateApproved }

// placeholderIndexes returns the sorted, distinct placeholder indexes of the body.
func placeholderIndexes(body string) []int {
	seen := make(map[int]bool)
	idxs := make([]int, 0)
	for _, match := range placeholderRegex.FindAllStringSubmatch(body, -1) {
		idx, err := strconv.Atoi(match[1])
		if err != nil || seen[idx] {
			continue
		}
		seen[idx] = true
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	return idxs
}

// Placeholders returns the number of variables the template expects (its highest placeholder).
func (t Template) Placeholders() int {
	idxs := placeholderIndexes(t.Body)
	if len(idxs) == 0 {
		return 0
	}
	return idxs[len(idxs)-1]
}

// Render substitutes the placeholders with `vars` (vars[0] is {{1}}).
func (t Template) Render(vars []string) (string, error) {
	if want := t.Placeholders(); len(vars) != want {
		return "", fmt.Errorf("%w: template %q expects %d, got %d", ErrTemplateVariables, t.Name, want, len(vars))
	}
	return placeholderRegex.ReplaceAllStringFunc(t.Body, func(ph string) string {
		idx, _ := strconv.Atoi(placeholderRegex.FindStringSubmatch(ph)[1])
		if idx < 1 || idx > len(vars) {
			return ph
		}
		return vars[idx-1]
	}), nil
}

// Variables returns `vars` keyed by placeholder index, as expected by content APIs.
func (t Template) Variables(vars []string) map[string]string {
	m := make(map[string]string, len(vars))
	for i, v := range vars {
		m[strconv.Itoa(i+1)] = v
	}
	return m
}
