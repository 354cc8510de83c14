package agent

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Skill describes a named unit of work an agent accepts.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// Task is one skill request.
type Task struct {
	ID string
	// SessionID scopes agent memory and conversation history.
	SessionID string
	Skill     string
	Input     map[string]any
	// Text is free-form text sent alongside the structured input.
	Text string
}

// Result is the outcome of a successful task.
type Result struct {
	Text string         `json:"text"`
	Data map[string]any `json:"data,omitempty"`
}

// Agent executes skills.
type Agent interface {
	Name() string
	Description() string
	Skills() []Skill
	Execute(ctx context.Context, task Task) (*Result, error)
}

// Skill error codes.
const (
	CodeUnknownSkill = "unknown_skill"
	CodeInvalidInput = "invalid_input"
	CodeNoContext    = "no_context"
	CodeNotFound     = "not_found"
	CodeRejected     = "rejected"
	CodeUnavailable  = "unavailable"
)

// SkillError is a failure the caller can act on. Hint suggests a next step.
type SkillError struct {
	Skill   string `json:"skill"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`

	Err error `json:"-"`
}

func (e *SkillError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Skill, e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *SkillError) Unwrap() error { return e.Err }

// UnknownSkill builds the error returned for unsupported skill names.
func UnknownSkill(a Agent, skill string) *SkillError {
	ids := make([]string, 0, len(a.Skills()))
	for _, s := range a.Skills() {
		ids = append(ids, s.ID)
	}

	msg := fmt.Sprintf("agent %s has no skill %q", a.Name(), skill)
	if skill == "" {
		msg = fmt.Sprintf("no skill selected for agent %s", a.Name())
	}

	return &SkillError{
		Skill:   skill,
		Code:    CodeUnknownSkill,
		Message: msg,
		Hint:    "Available skills: " + strings.Join(ids, ", "),
	}
}

// stringInput reads a non-empty string. Numbers are formatted.
func stringInput(in map[string]any, key string) (string, bool) {
	switch v := in[key].(type) {
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

// numberInput reads a number given as JSON number or numeric string.
func numberInput(in map[string]any, key string) (float64, bool, error) {
	raw, ok := in[key]
	if !ok || raw == nil {
		return 0, false, nil
	}

	switch v := raw.(type) {
	case float64:
		return finite(key, v)
	case float32:
		return finite(key, float64(v))
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, true, fmt.Errorf("%s must be a number", key)
		}
		return finite(key, f)
	default:
		return 0, true, fmt.Errorf("%s must be a number", key)
	}
}

func finite(key string, f float64) (float64, bool, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, fmt.Errorf("%s must be a finite number", key)
	}
	return f, true, nil
}

// integerInput is numberInput restricted to whole numbers.
func integerInput(in map[string]any, key string) (int64, bool, error) {
	f, ok, err := numberInput(in, key)
	if err != nil || !ok {
		return 0, ok, err
	}

	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, true, fmt.Errorf("%s is out of range", key)
	}

	if f != float64(int64(f)) {
		return 0, true, fmt.Errorf("%s must be a whole number", key)
	}

	return int64(f), true, nil
}
