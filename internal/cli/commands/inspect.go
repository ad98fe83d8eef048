package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/marker/internal/cli/config"
	"github.com/conduit-lang/marker/runtime/marker"
	"github.com/conduit-lang/marker/runtime/schema"
)

// NewInspectCommand creates the inspect command
func NewInspectCommand() *cobra.Command {
	var (
		schemaPath string
		markerType string
		declared   bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <element>",
		Short: "Print the resolved markers of an element",
		Long: `Resolves and prints the markers of a declared element, including
markers inherited through its hierarchy and meta-markers on its marker
types. Methods are addressed as Owner#name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadSchema(schemaPath); err != nil {
				return err
			}
			return runInspect(cmd, args[0], markerType, declared)
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema document (default from marker.yml)")
	cmd.Flags().StringVarP(&markerType, "type", "t", "", "only show markers of this type")
	cmd.Flags().BoolVar(&declared, "declared", false, "skip the hierarchy, element-local markers only")

	return cmd
}

// loadSchema registers the schema document, resolving the path through the
// config when the flag is unset.
func loadSchema(path string) error {
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path = cfg.SchemaPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if err := schema.RegisterSchema(data); err != nil {
		return fmt.Errorf("failed to register schema: %w", err)
	}
	return nil
}

func runInspect(cmd *cobra.Command, elementName, markerType string, declared bool) error {
	el, ok := schema.ElementOf(elementName)
	if !ok {
		return fmt.Errorf("unknown element: %s", elementName)
	}

	var (
		markers []schema.Instance
		err     error
	)
	view := marker.From(el)
	switch {
	case markerType != "" && declared:
		markers, err = view.DeclaredMarkersOfType(markerType)
	case markerType != "":
		markers, err = view.MarkersOfType(markerType)
	case declared:
		markers, err = view.AllDeclaredMarkers()
	default:
		markers, err = view.AllMarkers()
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	heading := color.New(color.FgCyan, color.Bold)
	heading.Fprintf(out, "%s", elementName)
	fmt.Fprintf(out, " (%s)\n", el.Kind)

	if len(markers) == 0 {
		color.New(color.Faint).Fprintln(out, "  no markers")
		return nil
	}
	for _, inst := range markers {
		fmt.Fprintf(out, "  %s\n", renderMarker(inst))
	}
	return nil
}

// renderMarker formats an instance as @Type(a=1, b=2) with attributes in
// name order.
func renderMarker(inst schema.Instance) string {
	values := marker.AttributeValues(inst)
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, values[name]))
	}
	typeColor := color.New(color.FgYellow)
	return typeColor.Sprintf("@%s", inst.Type().Name) + "(" + strings.Join(parts, ", ") + ")"
}
