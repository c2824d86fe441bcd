// Package template implements the shared placeholder grammar used by every
// channel: {{name}} substitution and non-nested {{#if_X}}...{{/if_X}} blocks.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"jobdispatch/internal/common/apperr"
)

var (
	tokenRe     = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)
	blockRe     = regexp.MustCompile(`\{\{(#if_|/if_)([a-zA-Z0-9_]+)\}\}`)
	multiLineRe = regexp.MustCompile(`\n{3,}`)
)

// Render substitutes variables into tmpl and resolves conditional blocks.
// Absent variables render as empty strings; blocks whose flag is not truthy
// are removed entirely. Nested or unbalanced blocks are rejected.
func Render(tmpl string, vars map[string]interface{}) (string, error) {
	if err := validateBlocks(tmpl); err != nil {
		return "", err
	}

	out := substitute(tmpl, vars)

	out, err := resolveConditionals(out, vars)
	if err != nil {
		return "", err
	}

	out = multiLineRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out), nil
}

// MustValidate checks block structure without rendering, for use at
// authoring time.
func MustValidate(tmpl string) error {
	return validateBlocks(tmpl)
}

// ExtractVariables returns the distinct placeholder names found in body, in
// order of first appearance. Conditional flags are included.
func ExtractVariables(body string) []string {
	seen := make(map[string]bool)
	var out []string

	for _, m := range blockRe.FindAllStringSubmatch(body, -1) {
		name := "if_" + m[2]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, m := range tokenRe.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func validateBlocks(tmpl string) error {
	open := ""
	for _, m := range blockRe.FindAllStringSubmatch(tmpl, -1) {
		marker, name := m[1], m[2]
		if marker == "#if_" {
			if open != "" {
				return apperr.TemplateInvalid(
					fmt.Sprintf("nested conditional block if_%s inside if_%s", name, open))
			}
			open = name
			continue
		}
		if open == "" {
			return apperr.TemplateInvalid(fmt.Sprintf("closing tag /if_%s without opening tag", name))
		}
		if open != name {
			return apperr.TemplateInvalid(
				fmt.Sprintf("closing tag /if_%s does not match open block if_%s", name, open))
		}
		open = ""
	}
	if open != "" {
		return apperr.TemplateInvalid(fmt.Sprintf("unclosed conditional block if_%s", open))
	}
	return nil
}

func substitute(tmpl string, vars map[string]interface{}) string {
	return tokenRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		name := tok[2 : len(tok)-2]
		v, ok := vars[name]
		if !ok {
			return ""
		}
		return stringify(v)
	})
}

func resolveConditionals(tmpl string, vars map[string]interface{}) (string, error) {
	var b strings.Builder
	rest := tmpl

	for {
		start := strings.Index(rest, "{{#if_")
		if start == -1 {
			b.WriteString(rest)
			return b.String(), nil
		}

		nameEnd := strings.Index(rest[start:], "}}")
		if nameEnd == -1 {
			b.WriteString(rest)
			return b.String(), nil
		}
		nameEnd += start
		name := rest[start+len("{{#if_") : nameEnd]

		closeTag := "{{/if_" + name + "}}"
		closeIdx := strings.Index(rest[nameEnd:], closeTag)
		if closeIdx == -1 {
			// validateBlocks rejects this before rendering
			return "", apperr.TemplateInvalid(fmt.Sprintf("unclosed conditional block if_%s", name))
		}
		closeIdx += nameEnd

		b.WriteString(rest[:start])
		if truthy(vars[name]) {
			b.WriteString(rest[nameEnd+2 : closeIdx])
		}
		rest = rest[closeIdx+len(closeTag):]
	}
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if !val {
			return ""
		}
		return "true"
	case int:
		if val == 0 {
			return ""
		}
		return fmt.Sprintf("%d", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}
