package config

import (
	"strings"
	"testing"
)

func TestModelConfigNormalizeFillsRoles(t *testing.T) {
	m := ModelConfig{Planner: "gpt-4o", Writer: "gpt-4o-mini"}.Normalize()
	if m.Router != "gpt-4o" {
		t.Fatalf("expected router to inherit planner model, got %q", m.Router)
	}
	if m.Research != "gpt-4o" {
		t.Fatalf("expected research to inherit planner model, got %q", m.Research)
	}
	if m.Writer != "gpt-4o-mini" {
		t.Fatalf("explicit writer model overwritten: %q", m.Writer)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestModelConfigValidateRejectsUnknownName(t *testing.T) {
	m := ModelConfig{Planner: "llama-3-70b"}.Normalize()
	err := m.Validate()
	if err == nil || !strings.Contains(err.Error(), "unrecognized model name") {
		t.Fatalf("expected unrecognized model error, got %v", err)
	}
}

func TestModelConfigValidateAcceptsClaudeAndO1(t *testing.T) {
	m := ModelConfig{Planner: "claude-sonnet-4-20250514", Router: "o1-mini"}.Normalize()
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestWorkflowNormalizeDefaults(t *testing.T) {
	w := WorkflowConfig{}.Normalize()
	if w.MaxToolTurns != 6 {
		t.Fatalf("expected 6 tool turns, got %d", w.MaxToolTurns)
	}
	if w.ResearchContextMax != 3000 || w.WriterContextMax != 5000 || w.ToolResultMax != 10000 {
		t.Fatalf("unexpected ceilings: %+v", w)
	}
	if w.MaxSteps != 10 {
		t.Fatalf("expected default max steps 10, got %d", w.MaxSteps)
	}
}

func TestWorkflowNormalizeKeepsExplicitValues(t *testing.T) {
	w := WorkflowConfig{MaxSteps: 3, ToolResultMax: 500}.Normalize()
	if w.MaxSteps != 3 || w.ToolResultMax != 500 {
		t.Fatalf("explicit values overwritten: %+v", w)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "u", Password: "p", DBName: "research"}
	got := p.DSN()
	want := "postgres://u:p@db:5432/research?sslmode=disable"
	if got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
	p.URL = "postgres://x"
	if p.DSN() != "postgres://x" {
		t.Fatalf("explicit url ignored")
	}
}
