package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"ai-list-filter/internal/common/validation"
	"ai-list-filter/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, updateCmd, validateCmd, listCmd} {
		fs.StringVar(&registryPath, "path", registry.DefaultPath, "Path to registry file")
	}

	idAdd := addCmd.String("id", "", "Activity ID (e.g., filter.prompt.create)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Create Filter)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "ai-filter", "Category")
	taskType := addCmd.String("taskType", "", "Zeebe Task Type (e.g., create-filter)")
	version := addCmd.String("version", "1.0.0", "Version")
	implStatus := addCmd.String("status", "planned", "Implementation Status (planned, in-progress, completed, api-only)")
	schemaFile := addCmd.String("inputSchema", "", "Path to a JSON Schema file for the request body")

	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, timeout, retries, routes, ...)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *description == "" || *taskType == "" {
			fmt.Println("Error: id, displayName, description and taskType are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		activity := registry.Activity{
			ID:                   *idAdd,
			DisplayName:          *displayName,
			Description:          *description,
			Category:             *category,
			Version:              *version,
			TaskType:             *taskType,
			ImplementationStatus: *implStatus,
			InputSchema:          map[string]interface{}{"type": "object"},
			OutputSchema:         map[string]interface{}{"type": "object"},
			ErrorCodes:           []string{},
			Timeout:              "10s",
			Routes:               []string{},
			Tags:                 []string{},
		}
		if *schemaFile != "" {
			schema, err := readSchema(*schemaFile)
			if err != nil {
				fmt.Printf("Error reading input schema: %v\n", err)
				os.Exit(1)
			}
			activity.InputSchema = schema
		}
		if err := addActivity(&activity); err != nil {
			fmt.Printf("Error adding activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added activity: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		n, err := validateRegistry()
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", n)

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listActivities(); err != nil {
			fmt.Printf("Error listing activities: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func readSchema(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var schema map[string]interface{}
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, err
	}
	return schema, nil
}

func addActivity(activity *registry.Activity) error {
	if err := registry.ValidateActivityID(activity.ID); err != nil {
		return err
	}

	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.ActivityRegistry{Version: "1.0.0", Activities: []registry.Activity{}}
	}

	if _, exists := reg.ByID(activity.ID); exists {
		return fmt.Errorf("activity with ID %s already exists", activity.ID)
	}
	if _, exists := reg.ByTaskType(activity.TaskType); exists {
		return fmt.Errorf("task type %s is already registered", activity.TaskType)
	}

	reg.Activities = append(reg.Activities, *activity)
	return saveRegistry(reg, registryPath)
}

func updateActivity(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	var target *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == id {
			target = &reg.Activities[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		target.ImplementationStatus = value
	case "version":
		target.Version = value
	case "displayName":
		target.DisplayName = value
	case "description":
		target.Description = value
	case "category":
		target.Category = value
	case "taskType":
		target.TaskType = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		target.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		target.Retries = retries
	case "routes":
		target.Routes = splitList(value)
	case "tags":
		target.Tags = splitList(value)
	case "inputSchema":
		schema, err := readSchema(value)
		if err != nil {
			return fmt.Errorf("invalid input schema: %w", err)
		}
		target.InputSchema = schema
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	return saveRegistry(reg, registryPath)
}

func splitList(value string) []string {
	out := []string{}
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// validateRegistry also compiles every input schema, so a broken schema is
// caught here rather than at service start.
func validateRegistry() (int, error) {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return 0, fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return 0, err
	}
	if _, err := validation.NewValidator(reg); err != nil {
		return 0, err
	}
	return len(reg.Activities), nil
}

func listActivities() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	activities := append([]registry.Activity{}, reg.Activities...)
	sort.Slice(activities, func(i, j int) bool { return activities[i].ID < activities[j].ID })
	for _, a := range activities {
		fmt.Printf("%-28s %-32s %-10s %s\n", a.ID, a.TaskType, a.ImplementationStatus, strings.Join(a.Routes, ","))
	}
	return nil
}

func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new activity to the registry
  update   Update an existing activity's field
  validate Validate the registry file and compile its schemas
  list     List registered activities
  help     Show this help message

Examples:
  registry-updater add -id filter.prompt.create -displayName "Create Filter" -description "Creates a list filter" -taskType create-filter -inputSchema create.json
  registry-updater update -id filter.prompt.create -field routes -value /api/v1/filters,/api/v1/maps/filters
  registry-updater validate -path pkg/registry/activity-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`+"\n")
}
