package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_UnmarshalJSON(t *testing.T) {
	var opts []Option
	require.NoError(t, json.Unmarshal([]byte(`[{"id":42,"label":"Mary"},{"id":"ignore","label":"x"},{"id":100089589,"label":"Springfield"}]`), &opts))
	assert.Equal(t, ID("42"), opts[0].ID)
	assert.Equal(t, ID("ignore"), opts[1].ID)
	assert.Equal(t, ID("100089589"), opts[2].ID)

	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &id))
}

func TestPiiResult_HasPii(t *testing.T) {
	assert.False(t, NoPii("hello").HasPii())
	assert.False(t, PiiResult{Pii: []string{"x"}}.HasPii())
	assert.True(t, PiiResult{Pii: []string{"x"}, Mappings: map[string]string{"tok": "x"}}.HasPii())
}

func TestPiiResult_RestoreAndLookup(t *testing.T) {
	p := PiiResult{
		Pii:      []string{"john@example.com", "Mary"},
		Mappings: map[string]string{"moc.xe@nhoj1a2b3": "john@example.com", "yMar9f8e7": "Mary"},
	}

	assert.Equal(t, "email john@example.com or Mary", p.Restore("email moc.xe@nhoj1a2b3 or yMar9f8e7"))
	assert.Equal(t, "Mary", p.Deobfuscate("yMar9f8e7"))
	assert.Equal(t, "plain", p.Deobfuscate("plain"))

	token, ok := p.TokenFor("Mary")
	require.True(t, ok)
	assert.Equal(t, "yMar9f8e7", token)

	assert.True(t, p.ContainsToken("x yMar9f8e7 y"))
	assert.False(t, p.ContainsToken("Mary"))
}

func TestIntents(t *testing.T) {
	tests := []struct {
		in       string
		want     FieldIntent
		known    bool
		isStatus bool
		isDate   bool
		status   string
	}{
		{"equals", IntentEquals, true, false, false, ""},
		{" NOT_EQUALS ", IntentNotEquals, true, false, false, ""},
		{"STATUS_ACTIVE", IntentStatusActive, true, true, false, "active"},
		{"STATUS_UNASSIGNABLE", IntentStatusUnassignable, true, true, false, "unassignable"},
		{"DATES_AFTER", IntentDatesAfter, true, false, true, ""},
		{"SOMETHING_ELSE", FieldIntent("SOMETHING_ELSE"), false, false, false, ""},
		{"STATUS_BOGUS", FieldIntent("STATUS_BOGUS"), false, false, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, known := ParseIntent(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, known)
			assert.Equal(t, tt.isStatus, got.IsStatus())
			assert.Equal(t, tt.isDate, got.IsDate())
			assert.Equal(t, tt.status, got.StatusValue())
		})
	}
}

func TestFilterField_UnmarshalShapes(t *testing.T) {
	var fields []FilterField
	require.NoError(t, json.Unmarshal([]byte(`[
		{"field_key":"assigned_to","field_value":"@[####](12)"},
		{"field_key":"milestones","field_value":["milestone_baptized",3],"intent":["ANY","not_equals"]},
		{"field_key":"tags","field_value":null,"intent":"NOT_SET"}
	]`), &fields))

	require.Len(t, fields, 3)
	assert.Equal(t, StringList{"@[####](12)"}, fields[0].Values)
	assert.Equal(t, []FieldIntent{IntentEquals}, fields[0].EffectiveIntents())
	assert.Equal(t, StringList{"milestone_baptized", "3"}, fields[1].Values)
	assert.Equal(t, IntentList{IntentAny, IntentNotEquals}, fields[1].Intents)
	assert.Empty(t, fields[2].Values)
	assert.True(t, fields[2].Has(IntentNotSet))
}

func TestQueryFields_JSON(t *testing.T) {
	var q QueryFields
	q.Add("assigned_to", "12")
	q.Add("location_grid", "100089589")
	q.Add("assigned_to", "13")
	q.Set("overall_status", "active")
	q.Add("tags")

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"assigned_to":["12","13"]},{"location_grid":["100089589"]},{"overall_status":["active"]},{"tags":[]}]`, string(data))

	var back QueryFields
	require.NoError(t, json.Unmarshal(data, &back))
	values, ok := back.Get("assigned_to")
	require.True(t, ok)
	assert.Equal(t, []string{"12", "13"}, values)
}

func TestPostsToGeoJSON(t *testing.T) {
	posts := []Post{
		{ID: "1", Name: "Alice", LocationGridMeta: []LocationMeta{
			{Label: "Springfield", Address: "1 Main St", Lat: 39.8, Lng: -89.6},
			{Label: "Nowhere", Lat: 0, Lng: 12},
		}},
		{ID: "2", LocationGridMeta: []LocationMeta{{Label: "Shelbyville", Lat: 39.4, Lng: -88.8}}},
		{ID: "3", Name: "No location"},
	}

	fc := PostsToGeoJSON(posts, "contacts")
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, []float64{-89.6, 39.8, 1}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "Alice", fc.Features[0].Properties.Name)
	assert.Equal(t, "1 Main St", fc.Features[0].Properties.Address)
	assert.Equal(t, "Shelbyville", fc.Features[1].Properties.Name)
	assert.Equal(t, ID("2"), fc.Features[1].Properties.PostID)
	assert.Equal(t, "contacts", fc.Features[1].Properties.PostType)

	empty := PostsToGeoJSON(nil, "contacts")
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}

func TestReferenceSet(t *testing.T) {
	s := NewReferenceSet()
	s.Add(CategoryUsers, Reference{Prompt: "Mary"})
	s.Add(CategoryPosts, Reference{Prompt: "Mary"})
	other := NewReferenceSet()
	other.Add(CategoryLocations, Reference{Prompt: "Springfield"})

	merged := s.Merge(other)
	assert.Equal(t, 3, merged.Len())
	assert.Equal(t, "Springfield", merged.Get(CategoryLocations)[0].Prompt)

	ref := Reference{Prompt: "Mary", PiiPrompt: "yraM1", Options: []Option{{ID: IgnoreSelectionID}}}
	assert.Equal(t, "yraM1", ref.Phrase(true))
	assert.Equal(t, "Mary", ref.Phrase(false))
	assert.True(t, ref.Ignored())
}

func TestResult_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Result{Status: StatusSuccess})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","posts":[]}`, string(data))

	data, err = json.Marshal(ErrorResult("Unable to process prompt: x"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","message":"Unable to process prompt: x"}`, string(data))

	points := PostsToGeoJSON(nil, "contacts")
	data, err = json.Marshal(Result{Status: StatusSuccess, Points: &points})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"posts"`)
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "@[####](12)", Placeholder("12"))

	id, ok := ParsePlaceholder(" @[####](100364199) ")
	require.True(t, ok)
	assert.Equal(t, ID("100364199"), id)

	for _, v := range []string{"12", "@[####]()", "@[####](12) and @[####](13)", "[####](12)"} {
		_, ok := ParsePlaceholder(v)
		assert.False(t, ok, v)
	}
}
