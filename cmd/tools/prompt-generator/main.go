// cmd/tools/prompt-generator/main.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"bureaucracy-oracle/pkg/registry"
)

// PromptData holds data for the specialist prompt template
type PromptData struct {
	Name        string
	Description string
	Sites       []string
	Example     string
}

const specialistTemplate = `Eres el especialista en {{.Name}} del Oráculo Burocrático Argentino.

Cubres: {{.Description}}.
{{- if .Sites}}

Fuentes oficiales de referencia: {{join .Sites ", "}}.
{{- end}}

Cuando la consulta incluya información de búsqueda web, priorízala sobre tu
conocimiento previo y cita número y año de cada norma.

Responde SOLO con JSON:
{
  "answer": "<respuesta directa y precisa>",
  "regulations": ["{{.Example}}"],
  "steps": ["<paso 1>", "<paso 2>"],
  "confidence": 0.0-1.0,
  "confidence_factors": {
    "has_specific_regulations": true,
    "has_exact_articles": false,
    "has_complete_procedures": false,
    "has_recent_updates": false
  }
}
`

var promptTmpl = template.Must(template.New("specialist").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(specialistTemplate))

func main() {
	registryPath := flag.String("registry", "configs/agents.yml", "Path to registry file")
	outDir := flag.String("out", "configs/prompts", "Prompt directory")
	force := flag.Bool("force", false, "Overwrite existing prompt files")
	flag.Parse()

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Printf("Error creating %s: %v\n", *outDir, err)
		os.Exit(1)
	}

	generated, err := generate(reg, *outDir, *force)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for _, path := range generated {
		fmt.Printf("✓ Generated %s\n", path)
	}
	fmt.Printf("\n✅ %d prompt(s) generated in %s\n", len(generated), *outDir)
}

// generate writes a scaffold for every domain whose prompt file is missing.
func generate(reg *registry.Registry, outDir string, force bool) ([]string, error) {
	var generated []string
	for _, d := range reg.Domains {
		path := filepath.Join(outDir, d.Prompt+".md")
		if _, err := os.Stat(path); err == nil && !force {
			continue
		}

		file, err := os.Create(path)
		if err != nil {
			return generated, fmt.Errorf("create %s: %w", path, err)
		}
		err = render(file, d)
		file.Close()
		if err != nil {
			return generated, fmt.Errorf("render %s: %w", path, err)
		}
		generated = append(generated, path)
	}
	return generated, nil
}

func render(w io.Writer, d registry.Domain) error {
	tag := strings.ToUpper(d.Slug)
	return promptTmpl.Execute(w, PromptData{
		Name:        d.Name,
		Description: strings.TrimSuffix(strings.TrimSpace(d.Description), "."),
		Sites:       d.Search.IncludeDomains,
		Example:     "Resolución " + tag + " N/AAAA",
	})
}
