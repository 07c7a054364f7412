package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FilterFieldList decodes every output shape the model is known to produce:
//
//	[{"field_key": k, "field_value": v, "intent": i}]
//	{"fields": ...}
//	[{k: v}]
//	{k: v, "intents": {k: i}}
//
// Values and intents may be scalars or lists.
type FilterFieldList []FilterField

func (m *FilterFieldList) UnmarshalJSON(data []byte) error {
	fields, err := ParseFilterFields(data)
	if err != nil {
		return err
	}
	*m = fields
	return nil
}

// ParseFilterFields normalises model output into fields.
func ParseFilterFields(data []byte) ([]FilterField, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty output")
	}

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		fields := make([]FilterField, 0, len(items))
		for _, item := range items {
			parsed, err := parseObject(item, false)
			if err != nil {
				return nil, err
			}
			fields = append(fields, parsed...)
		}
		return fields, nil
	case '{':
		return parseObject(data, true)
	}
	return nil, fmt.Errorf("expected an array or object")
}

func parseObject(data []byte, top bool) ([]FilterField, error) {
	keys, obj, err := orderedObject(data)
	if err != nil {
		return nil, err
	}

	if top {
		if inner, ok := obj["fields"]; ok {
			return ParseFilterFields(inner)
		}
	}

	if _, ok := obj["field_key"]; ok {
		var f FilterField
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		if f.FieldKey == "" {
			return nil, nil
		}
		return []FilterField{f}, nil
	}

	intents := map[string]IntentList{}
	if raw, ok := obj["intents"]; ok && top {
		if err := json.Unmarshal(raw, &intents); err != nil {
			return nil, fmt.Errorf("intents: %w", err)
		}
	}

	fields := make([]FilterField, 0, len(keys))
	for _, key := range keys {
		if key == "intents" && top {
			continue
		}
		var values StringList
		if err := json.Unmarshal(obj[key], &values); err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		fields = append(fields, FilterField{FieldKey: key, Values: values, Intents: intents[key]})
	}
	return fields, nil
}

// orderedObject decodes a JSON object keeping its key order.
func orderedObject(data []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected an object")
	}

	var keys []string
	obj := map[string]json.RawMessage{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected an object key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		if _, dup := obj[key]; !dup {
			keys = append(keys, key)
		}
		obj[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, obj, nil
}

// KnownIntentsOnly drops intents outside the known set and returns them.
func KnownIntentsOnly(fields []FilterField) ([]FilterField, []string) {
	var unknown []string
	out := make([]FilterField, 0, len(fields))
	for _, f := range fields {
		if len(f.Intents) > 0 {
			kept := make(IntentList, 0, len(f.Intents))
			for _, intent := range f.Intents {
				if intent.Known() {
					kept = append(kept, intent)
				} else {
					unknown = append(unknown, string(intent))
				}
			}
			f.Intents = kept
		}
		out = append(out, f)
	}
	return out, unknown
}
