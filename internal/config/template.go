// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"regexp"
	"strings"
	"text/template"
)

// TemplateExpander handles Go text/template variable expansion in config values.
type TemplateExpander struct {
	funcMap template.FuncMap
}

// NewTemplateExpander creates a new template expander with built-in functions.
func NewTemplateExpander() *TemplateExpander {
	return &TemplateExpander{
		funcMap: template.FuncMap{
			"slugify": Slugify,
			"replace": Replace,
			"upper":   strings.ToUpper,
			"lower":   strings.ToLower,
			"default": Default,
		},
	}
}

// Expand expands template variables in a string value.
func (e *TemplateExpander) Expand(value string, ctx *TemplateContext) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}

	tmpl, err := template.New("").Funcs(e.funcMap).Parse(value)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// ExpandAgent expands template variables in an agent config's command and env.
func (e *TemplateExpander) ExpandAgent(a AgentConfig, ctx *TemplateContext) (AgentConfig, error) {
	agentCtx := &TemplateContext{
		Worktree: ctx.Worktree,
		Project:  ctx.Project,
		Agent:    &AgentTemplateData{Kind: a.Kind},
	}

	expanded := a

	switch cmd := a.Command.(type) {
	case string:
		expandedCmd, err := e.Expand(cmd, agentCtx)
		if err != nil {
			return expanded, err
		}
		expanded.Command = expandedCmd
	case []interface{}:
		expandedCmd := make([]string, len(cmd))
		for i, v := range cmd {
			str, ok := v.(string)
			if !ok {
				continue
			}
			exp, err := e.Expand(str, agentCtx)
			if err != nil {
				return expanded, err
			}
			expandedCmd[i] = exp
		}
		expanded.Command = expandedCmd
	case []string:
		expandedCmd := make([]string, len(cmd))
		for i, str := range cmd {
			exp, err := e.Expand(str, agentCtx)
			if err != nil {
				return expanded, err
			}
			expandedCmd[i] = exp
		}
		expanded.Command = expandedCmd
	}

	if len(a.Env) > 0 {
		expandedEnv := make(map[string]string, len(a.Env))
		for k, v := range a.Env {
			exp, err := e.Expand(v, agentCtx)
			if err != nil {
				return expanded, err
			}
			expandedEnv[k] = exp
		}
		expanded.Env = expandedEnv
	}

	return expanded, nil
}

// Slugify converts a string to a URL-friendly slug, matching the slugs
// expected under todos/{slug} and trees/{slug}.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, " ", "-")

	reg := regexp.MustCompile(`[^a-z0-9-]+`)
	s = reg.ReplaceAllString(s, "")

	reg = regexp.MustCompile(`-+`)
	s = reg.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

// Replace replaces all occurrences of old with new in s.
func Replace(old, new, s string) string {
	return strings.ReplaceAll(s, old, new)
}

// Default returns the value if non-empty, otherwise the default.
func Default(defaultVal, value string) string {
	if value == "" {
		return defaultVal
	}
	return value
}
