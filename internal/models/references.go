package models

import "strings"

// Category groups references by the datastore collection they resolve in.
type Category string

const (
	CategoryLocations Category = "locations"
	CategoryUsers     Category = "users"
	CategoryPosts     Category = "posts"
)

// Categories lists the categories in precedence order. Rewriting and value
// lookups walk them in this order.
var Categories = []Category{CategoryLocations, CategoryUsers, CategoryPosts}

// IgnoreSelectionID marks a reference the user chose to drop.
const IgnoreSelectionID = "ignore"

// Option is one datastore candidate for a reference.
type Option struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
}

// Reference is a phrase from the prompt that points at a datastore record.
// PiiPrompt is the phrase as it appears in the obfuscated prompt.
type Reference struct {
	Prompt    string   `json:"prompt"`
	PiiPrompt string   `json:"pii_prompt"`
	Options   []Option `json:"options"`
}

// Phrase returns the text to look for in a prompt.
func (r Reference) Phrase(hasPii bool) string {
	if hasPii && r.PiiPrompt != "" {
		return r.PiiPrompt
	}
	return r.Prompt
}

func (r Reference) Ignored() bool {
	return len(r.Options) > 0 && string(r.Options[0].ID) == IgnoreSelectionID
}

type ReferenceSet struct {
	Locations []Reference `json:"locations"`
	Users     []Reference `json:"users"`
	Posts     []Reference `json:"posts"`
}

// NewReferenceSet returns a set with empty, non-nil categories.
func NewReferenceSet() ReferenceSet {
	return ReferenceSet{Locations: []Reference{}, Users: []Reference{}, Posts: []Reference{}}
}

func (s ReferenceSet) Get(c Category) []Reference {
	switch c {
	case CategoryLocations:
		return s.Locations
	case CategoryUsers:
		return s.Users
	case CategoryPosts:
		return s.Posts
	}
	return nil
}

func (s *ReferenceSet) Add(c Category, refs ...Reference) {
	switch c {
	case CategoryLocations:
		s.Locations = append(s.Locations, refs...)
	case CategoryUsers:
		s.Users = append(s.Users, refs...)
	case CategoryPosts:
		s.Posts = append(s.Posts, refs...)
	}
}

func (s ReferenceSet) Len() int {
	return len(s.Locations) + len(s.Users) + len(s.Posts)
}

// Merge appends other's references after s's, category by category.
func (s ReferenceSet) Merge(other ReferenceSet) ReferenceSet {
	out := NewReferenceSet()
	for _, c := range Categories {
		out.Add(c, s.Get(c)...)
		out.Add(c, other.Get(c)...)
	}
	return out
}

// Selection is the user's answer for one ambiguous reference.
type Selection struct {
	Prompt string `json:"prompt"`
	ID     ID     `json:"id"`
	Label  string `json:"label"`
}

func (s Selection) Ignored() bool {
	return string(s.ID) == IgnoreSelectionID
}

type SelectionSet struct {
	Locations []Selection `json:"locations"`
	Users     []Selection `json:"users"`
	Posts     []Selection `json:"posts"`
}

func (s SelectionSet) Get(c Category) []Selection {
	switch c {
	case CategoryLocations:
		return s.Locations
	case CategoryUsers:
		return s.Users
	case CategoryPosts:
		return s.Posts
	}
	return nil
}

func (s SelectionSet) Len() int {
	return len(s.Locations) + len(s.Users) + len(s.Posts)
}

// Connections is what the extractor pulls out of a prompt.
type Connections struct {
	Locations   []string `json:"locations"`
	Connections []string `json:"connections"`
}

func (c Connections) Empty() bool {
	return len(c.Locations) == 0 && len(c.Connections) == 0
}

const (
	placeholderPrefix = "@[####]("
	placeholderSuffix = ")"
)

// Placeholder is the marker the rewriter puts in place of a resolved phrase.
func Placeholder(id ID) string {
	return placeholderPrefix + string(id) + placeholderSuffix
}

// ParsePlaceholder returns the id of a value that is exactly one placeholder.
func ParsePlaceholder(value string) (ID, bool) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, placeholderPrefix) || !strings.HasSuffix(value, placeholderSuffix) {
		return "", false
	}
	id := value[len(placeholderPrefix) : len(value)-len(placeholderSuffix)]
	if id == "" || strings.ContainsAny(id, "()") {
		return "", false
	}
	return ID(id), true
}
