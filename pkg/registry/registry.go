package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// DefaultPath is where registry-updater keeps the registry in a checkout.
const DefaultPath = "pkg/registry/activity-registry.json"

//go:embed activity-registry.json
var defaultRegistry []byte

var activityIDPattern = regexp.MustCompile(`^[a-z]+\.[a-z]+\.[a-z]+$`)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the registry compiled into the binary.
func Default() (*ActivityRegistry, error) {
	return Parse(defaultRegistry)
}

func Parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse activity registry: %w", err)
	}
	return &reg, nil
}

// ByTaskType returns the activity handling taskType.
func (r *ActivityRegistry) ByTaskType(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

func (r *ActivityRegistry) ByID(id string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}

// Validate checks ids, required fields and duplicates.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, a := range r.Activities {
		if a.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate activity ID: %s", a.ID)
		}
		ids[a.ID] = true

		if err := ValidateActivityID(a.ID); err != nil {
			return err
		}
		if a.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", a.ID)
		}
		if a.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", a.ID)
		}
		if taskTypes[a.TaskType] {
			return fmt.Errorf("duplicate task type: %s", a.TaskType)
		}
		taskTypes[a.TaskType] = true
		if a.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", a.ID)
		}
	}
	return nil
}

// ValidateActivityID checks the domain.subdomain.action naming convention.
func ValidateActivityID(id string) error {
	if !activityIDPattern.MatchString(id) {
		return fmt.Errorf("activity ID %q must follow format: domain.subdomain.action (e.g., filter.prompt.create)", id)
	}
	return nil
}
