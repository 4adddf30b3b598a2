// cmd/tools/registry-updater/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"bureaucracy-oracle/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, updateCmd, validateCmd, listCmd} {
		fs.StringVar(&registryPath, "path", "configs/agents.yml", "Path to registry file")
	}

	// Add command flags
	slug := addCmd.String("slug", "", "Domain slug (e.g., afip)")
	name := addCmd.String("name", "", "Display name (e.g., AFIP)")
	description := addCmd.String("description", "", "Description shown to the router")
	domains := addCmd.String("domains", "", "Comma-separated sites searched for this domain")
	triggers := addCmd.String("triggers", "", "Comma-separated words that force a search")
	facts := addCmd.String("facts", "", "Comma-separated fact extractors (tariffs, amounts)")

	// Update command flags
	slugUpdate := updateCmd.String("slug", "", "Domain slug to update")
	field := updateCmd.String("field", "", "Field to update (name, description, triggers, ...)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *slug == "" || *name == "" || *description == "" {
			fmt.Println("Error: slug, name, and description are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		domain := registry.Domain{
			Slug:        *slug,
			Name:        *name,
			Description: *description,
			Search: registry.SearchConfig{
				IncludeDomains: registry.SplitList(*domains),
				Triggers:       registry.SplitList(*triggers),
				Facts:          registry.SplitList(*facts),
			},
		}
		if err := addDomain(domain); err != nil {
			fmt.Printf("Error adding domain: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added domain: %s\n", *slug)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *slugUpdate == "" || *field == "" {
			fmt.Println("Error: slug and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateDomain(*slugUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating domain: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated domain %s, field %s to %s\n", *slugUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if _, err := registry.LoadRegistry(registryPath); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		for _, d := range reg.Domains {
			fmt.Printf("%-10s %-28s sites=%s\n", d.Slug, d.Name, strings.Join(d.Search.IncludeDomains, ","))
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func addDomain(domain registry.Domain) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		// If file doesn't exist, start a new registry
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.Registry{Version: "1"}
	}
	if err := reg.Add(domain); err != nil {
		return err
	}
	return registry.Save(reg, registryPath)
}

func updateDomain(slug, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Update(slug, field, value); err != nil {
		return err
	}
	return registry.Save(reg, registryPath)
}

func help() {
	fmt.Println("Usage: registry-updater <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  add       Add a new specialist domain")
	fmt.Println("  update    Update a field of an existing domain")
	fmt.Println("  validate  Validate the registry file")
	fmt.Println("  list      List registered domains")
	fmt.Println("  help      Show this help message")
}
