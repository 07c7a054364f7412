package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FieldIntent qualifies how a field value is matched.
type FieldIntent string

const (
	IntentEquals    FieldIntent = "EQUALS"
	IntentNotEquals FieldIntent = "NOT_EQUALS"
	IntentAny       FieldIntent = "ANY"
	IntentNotSet    FieldIntent = "NOT_SET"

	IntentStatusNew          FieldIntent = "STATUS_NEW"
	IntentStatusActive       FieldIntent = "STATUS_ACTIVE"
	IntentStatusInactive     FieldIntent = "STATUS_INACTIVE"
	IntentStatusNone         FieldIntent = "STATUS_NONE"
	IntentStatusClosed       FieldIntent = "STATUS_CLOSED"
	IntentStatusUnassignable FieldIntent = "STATUS_UNASSIGNABLE"
	IntentStatusUnassigned   FieldIntent = "STATUS_UNASSIGNED"
	IntentStatusAssigned     FieldIntent = "STATUS_ASSIGNED"
	IntentStatusPaused       FieldIntent = "STATUS_PAUSED"

	IntentDatesBetween        FieldIntent = "DATES_BETWEEN"
	IntentDatesAfter          FieldIntent = "DATES_AFTER"
	IntentDatesBefore         FieldIntent = "DATES_BEFORE"
	IntentDatesPreviousYears  FieldIntent = "DATES_PREVIOUS_YEARS"
	IntentDatesPreviousMonths FieldIntent = "DATES_PREVIOUS_MONTHS"
	IntentDatesPreviousDays   FieldIntent = "DATES_PREVIOUS_DAYS"
)

var knownIntents = map[FieldIntent]struct{}{
	IntentEquals: {}, IntentNotEquals: {}, IntentAny: {}, IntentNotSet: {},
	IntentStatusNew: {}, IntentStatusActive: {}, IntentStatusInactive: {}, IntentStatusNone: {},
	IntentStatusClosed: {}, IntentStatusUnassignable: {}, IntentStatusUnassigned: {},
	IntentStatusAssigned: {}, IntentStatusPaused: {},
	IntentDatesBetween: {}, IntentDatesAfter: {}, IntentDatesBefore: {},
	IntentDatesPreviousYears: {}, IntentDatesPreviousMonths: {}, IntentDatesPreviousDays: {},
}

// ParseIntent normalises a tag. The bool is false for tags outside the
// known set; those are kept so callers can log and skip them.
func ParseIntent(s string) (FieldIntent, bool) {
	intent := FieldIntent(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := knownIntents[intent]
	return intent, ok
}

func (i FieldIntent) Known() bool {
	_, ok := knownIntents[i]
	return ok
}

func (i FieldIntent) IsStatus() bool {
	return strings.HasPrefix(string(i), "STATUS_") && i.Known()
}

func (i FieldIntent) IsDate() bool {
	return strings.HasPrefix(string(i), "DATES_") && i.Known()
}

// StatusValue returns the status option key, e.g. "active" for STATUS_ACTIVE.
func (i FieldIntent) StatusValue() string {
	if !i.IsStatus() {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(string(i), "STATUS_"))
}

// StringList decodes either a scalar or a list of scalars.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make([]string, 0, len(raw))
		for _, r := range raw {
			s, err := scalarString(r)
			if err != nil {
				return err
			}
			if s != "" {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	}
	s, err := scalarString(data)
	if err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	*l = StringList{s}
	return nil
}

func scalarString(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	default:
		return "", fmt.Errorf("expected a scalar value, got %T", v)
	}
}

// IntentList decodes either a single intent tag or a list of them.
type IntentList []FieldIntent

func (l *IntentList) UnmarshalJSON(data []byte) error {
	var raw StringList
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	out := make(IntentList, 0, len(raw))
	for _, s := range raw {
		intent, _ := ParseIntent(s)
		out = append(out, intent)
	}
	*l = out
	return nil
}

// FilterField is one field predicate as produced by the model.
type FilterField struct {
	FieldKey string     `json:"field_key"`
	Values   StringList `json:"field_value"`
	Intents  IntentList `json:"intent"`
}

// EffectiveIntents returns the intents, defaulting to EQUALS.
func (f FilterField) EffectiveIntents() []FieldIntent {
	if len(f.Intents) == 0 {
		return []FieldIntent{IntentEquals}
	}
	return f.Intents
}

func (f FilterField) Has(intent FieldIntent) bool {
	for _, i := range f.Intents {
		if i == intent {
			return true
		}
	}
	return false
}

// QueryField is one key of the list-by-filter query.
type QueryField struct {
	Key    string
	Values []string
}

// QueryFields is an ordered list-by-filter query. It encodes as a list of
// single-key objects: [{"assigned_to": ["12"]}].
type QueryFields []QueryField

// Add merges values into key, creating it at the end when new.
func (q *QueryFields) Add(key string, values ...string) {
	for i := range *q {
		if (*q)[i].Key == key {
			(*q)[i].Values = append((*q)[i].Values, values...)
			return
		}
	}
	*q = append(*q, QueryField{Key: key, Values: append([]string{}, values...)})
}

// Set replaces the values of key.
func (q *QueryFields) Set(key string, values ...string) {
	for i := range *q {
		if (*q)[i].Key == key {
			(*q)[i].Values = append([]string{}, values...)
			return
		}
	}
	*q = append(*q, QueryField{Key: key, Values: append([]string{}, values...)})
}

func (q QueryFields) Get(key string) ([]string, bool) {
	for _, f := range q {
		if f.Key == key {
			return f.Values, true
		}
	}
	return nil, false
}

func (q QueryFields) MarshalJSON() ([]byte, error) {
	out := make([]map[string][]string, 0, len(q))
	for _, f := range q {
		values := f.Values
		if values == nil {
			values = []string{}
		}
		out = append(out, map[string][]string{f.Key: values})
	}
	return json.Marshal(out)
}

func (q *QueryFields) UnmarshalJSON(data []byte) error {
	var raw []map[string]StringList
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(QueryFields, 0, len(raw))
	for _, entry := range raw {
		for k, v := range entry {
			out.Add(k, v...)
		}
	}
	*q = out
	return nil
}
