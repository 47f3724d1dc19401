// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

var validAgentKinds = map[string]bool{
	"claude": true,
	"codex":  true,
	"gemini": true,
	"shell":  true,
}

var validTaskTypes = map[string]bool{
	"prepare":  true,
	"build":    true,
	"review":   true,
	"fix":      true,
	"commit":   true,
	"finalize": true,
}

var validThinkingTiers = map[string]bool{
	"fast":   true,
	"medium": true,
	"slow":   true,
}

// Validate checks configuration validity. ConfigInvalid (spec.md §7) is
// fatal at startup; the daemon refuses to start when this returns an error.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateRequired(cfg, errs)
	v.validateServer(cfg, errs)
	v.validateAgents(cfg, errs)
	v.validateFallback(cfg, errs)
	v.validateTLS(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateRequired(cfg *Config, errs *ValidationError) {
	if cfg.Version == "" {
		errs.Add("version", "is required")
	}
	if cfg.Project.Name == "" {
		errs.Add("project.name", "is required")
	}
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port != 0 && (cfg.Server.Port < 0 || cfg.Server.Port > 65535) {
		errs.Add("server.port", "must be between 0 and 65535")
	}
}

func (v *Validator) validateAgents(cfg *Config, errs *ValidationError) {
	seen := make(map[string]bool)
	for i, a := range cfg.Agents {
		field := fmt.Sprintf("agents[%d]", i)
		if a.Kind == "" {
			errs.Add(field+".kind", "is required")
			continue
		}
		if !validAgentKinds[a.Kind] {
			errs.Add(field+".kind", fmt.Sprintf("unknown agent kind %q", a.Kind))
		}
		if seen[a.Kind] {
			errs.Add(field+".kind", fmt.Sprintf("duplicate agent kind %q", a.Kind))
		}
		seen[a.Kind] = true
		if len(a.GetCommand()) == 0 && a.Kind != "shell" {
			errs.Add(field+".command", "is required for non-shell agent kinds")
		}
	}
}

func (v *Validator) validateFallback(cfg *Config, errs *ValidationError) {
	for i, rule := range cfg.Fallback {
		field := fmt.Sprintf("fallback[%d]", i)
		if rule.TaskType == "" {
			errs.Add(field+".task_type", "is required")
			continue
		}
		if !validTaskTypes[rule.TaskType] {
			errs.Add(field+".task_type", fmt.Sprintf("unknown task type %q", rule.TaskType))
		}
		if len(rule.Candidates) == 0 {
			errs.Add(field+".candidates", "must list at least one candidate")
		}
		for j, c := range rule.Candidates {
			cfield := fmt.Sprintf("%s.candidates[%d]", field, j)
			if !validAgentKinds[c.AgentKind] {
				errs.Add(cfield+".agent_kind", fmt.Sprintf("unknown agent kind %q", c.AgentKind))
			}
			if c.ThinkingTier != "" && !validThinkingTiers[c.ThinkingTier] {
				errs.Add(cfield+".thinking_tier", fmt.Sprintf("unknown thinking tier %q", c.ThinkingTier))
			}
		}
	}
}

func (v *Validator) validateTLS(cfg *Config, errs *ValidationError) {
	hasCert := cfg.Server.TLSCert != ""
	hasKey := cfg.Server.TLSKey != ""
	if hasCert != hasKey {
		errs.Add("server.tls_cert/tls_key", "both must be set together, or neither")
	}
}
