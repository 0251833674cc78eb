// Package forms collects, validates and resets the dashboard's HTML forms.
package forms

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Rule constrains a single field. Checks run in the order required, type, max, min
// and stop at the first violation.
type Rule struct {
	Required bool
	Type     string // "number" rejects non-numeric and negative values
	Min      *float64
	Max      *float64

	RequiredMessage string
	NumberMessage   string
	MinMessage      string
	MaxMessage      string
}

// Rules maps field names to their constraints
type Rules map[string]Rule

// Limit returns a pointer for use as Rule.Min or Rule.Max
func Limit(v float64) *float64 {
	return &v
}

// State is the last submitted values of a form plus its inline field errors
type State struct {
	Values map[string]string `json:"values"`
	Errors map[string]string `json:"errors"`
}

// Invalid reports whether field carries a validation error
func (s State) Invalid(field string) bool {
	_, ok := s.Errors[field]
	return ok
}

// Error returns the validation message of field, if any
func (s State) Error(field string) string {
	return s.Errors[field]
}

// Value returns the last submitted value of field
func (s State) Value(field string) string {
	return s.Values[field]
}

// InvalidFields returns the names of invalid fields, sorted
func (s State) InvalidFields() []string {
	fields := make([]string, 0, len(s.Errors))
	for f := range s.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Manager tracks form state by form id
type Manager struct {
	mu    sync.Mutex
	forms map[string]*State
}

// NewManager creates an empty form manager
func NewManager() *Manager {
	return &Manager{forms: make(map[string]*State)}
}

func (m *Manager) state(formID string) *State {
	s, ok := m.forms[formID]
	if !ok {
		s = &State{Values: map[string]string{}, Errors: map[string]string{}}
		m.forms[formID] = s
	}
	return s
}

// Collect reads every named field of a submission. Values that parse fully as a
// finite number become float64; everything else stays a string.
func (m *Manager) Collect(formID string, values url.Values) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(formID)
	data := make(map[string]any, len(values))
	for name, vs := range values {
		value := ""
		if len(vs) > 0 {
			value = vs[0]
		}
		s.Values[name] = value
		data[name] = coerce(value)
	}
	return data
}

// Validate checks values against rules, recording one message per failing field.
// Previous markings on the form are cleared first. Returns true when every field passes.
func (m *Manager) Validate(formID string, values url.Values, rules Rules) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(formID)
	s.Errors = make(map[string]string)
	for name, vs := range values {
		if len(vs) > 0 {
			s.Values[name] = vs[0]
		}
	}

	valid := true
	for field, rule := range rules {
		if msg, ok := check(field, values.Get(field), rule); !ok {
			s.Errors[field] = msg
			valid = false
		}
	}
	return valid
}

// Reset clears the values and validation markings of a form
func (m *Manager) Reset(formID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.forms, formID)
}

// State returns a copy of the current state of a form
func (m *Manager) State(formID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.forms[formID]
	if !ok {
		return State{Values: map[string]string{}, Errors: map[string]string{}}
	}

	out := State{
		Values: make(map[string]string, len(s.Values)),
		Errors: make(map[string]string, len(s.Errors)),
	}
	for k, v := range s.Values {
		out.Values[k] = v
	}
	for k, v := range s.Errors {
		out.Errors[k] = v
	}
	return out
}

func check(field, value string, rule Rule) (string, bool) {
	blank := strings.TrimSpace(value) == ""

	if rule.Required && blank {
		return message(rule.RequiredMessage, fmt.Sprintf("%s is required.", field)), false
	}

	num, isNum := parseNumber(value)

	if rule.Type == "number" && !blank && (!isNum || num < 0) {
		return message(rule.NumberMessage, "Please enter a valid number."), false
	}

	if rule.Max != nil && isNum && num > *rule.Max {
		return message(rule.MaxMessage, fmt.Sprintf("Maximum value is %s.", trimFloat(*rule.Max))), false
	}

	if rule.Min != nil && isNum && num < *rule.Min {
		return message(rule.MinMessage, fmt.Sprintf("Minimum value is %s.", trimFloat(*rule.Min))), false
	}

	return "", true
}

func message(custom, fallback string) string {
	if custom != "" {
		return custom
	}
	return fallback
}

func parseNumber(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerce(value string) any {
	if f, ok := parseNumber(value); ok {
		return f
	}
	return value
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
