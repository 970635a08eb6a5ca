package services

import (
	"strconv"
	"strings"
)

// RenderTemplate substitutes positional placeholders ({{1}}, {{2}}, ...)
// in the template body with the bound variables. Pure string substitution:
// unknown placeholders are left untouched so a provider-side mismatch stays
// visible in the rendered output.
func RenderTemplate(body string, variables map[string]string) string {
	if len(variables) == 0 {
		return body
	}

	rendered := body
	for key, value := range variables {
		if _, err := strconv.Atoi(key); err != nil {
			continue
		}
		rendered = strings.ReplaceAll(rendered, "{{"+key+"}}", value)
	}
	return rendered
}
