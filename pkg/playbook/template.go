package playbook

import (
	"regexp"

	"github.com/codeready-toolchain/medik/pkg/models"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// ResolveParams fills template placeholders from the incident context.
// Tokens whose key is missing from the context are left literal; resolution
// never fails.
func ResolveParams(params map[string]models.ParamValue, context map[string]string) map[string]any {
	resolved := make(map[string]any, len(params))
	for key, value := range params {
		if !value.IsTemplate() {
			resolved[key] = value.LiteralValue()
			continue
		}
		resolved[key] = placeholderRe.ReplaceAllStringFunc(value.TemplateString(), func(token string) string {
			name := token[1 : len(token)-1]
			if v, ok := context[name]; ok {
				return v
			}
			return token
		})
	}
	return resolved
}
