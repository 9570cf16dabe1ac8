package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/khanglvm/event-hub/internal/models"
)

// catalogFile is the YAML layout accepted by 'index --catalog'.
type catalogFile struct {
	Events []models.Event `yaml:"events"`
}

// NewIndexCmd creates the 'index' command for loading an event catalog.
func NewIndexCmd() *cobra.Command {
	var catalogPath string
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load an event catalog and build the search indexes",
		Long: `Read events from a YAML catalog, store them and index their text.

The catalog file lists events under an 'events' key:

  events:
    - id: evt-1
      name: Jazz Night
      category: Music
      location: Austin
      price: 25
      date: 2026-11-20T20:00:00Z

With --rebuild and no catalog, every stored event is re-embedded instead.`,
		Example: `  event-hub index --catalog events.yaml
  event-hub index --rebuild`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if catalogPath == "" && !rebuild {
				return fmt.Errorf("either --catalog or --rebuild is required")
			}
			return runIndex(cmd, catalogPath, rebuild)
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML catalog file")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Re-embed every stored event")

	return cmd
}

// loadCatalog reads and checks a catalog file.
func loadCatalog(path string) ([]models.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	seen := make(map[string]bool, len(cf.Events))
	for i, ev := range cf.Events {
		if ev.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i+1)
		}
		if seen[ev.ID] {
			return nil, fmt.Errorf("duplicate event id %q in catalog", ev.ID)
		}
		seen[ev.ID] = true
	}
	return cf.Events, nil
}

func runIndex(cmd *cobra.Command, catalogPath string, rebuild bool) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	var events []models.Event
	if catalogPath != "" {
		var err error
		if events, err = loadCatalog(catalogPath); err != nil {
			return err
		}
	}

	eng, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	if rebuild {
		if err := eng.ClearIndex(ctx); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	}

	failed := 0
	for _, ev := range events {
		if !eng.IndexEvent(ctx, ev) {
			failed++
			fmt.Fprintf(out, "✗ %s: not indexed\n", ev.ID)
		}
	}

	if rebuild {
		n := eng.IndexCatalog(ctx)
		fmt.Fprintf(out, "✓ Re-indexed %d stored events\n", n)
	} else {
		fmt.Fprintf(out, "✓ Indexed %d of %d events\n", len(events)-failed, len(events))
	}
	fmt.Fprintf(out, "  Vector index size: %d\n", eng.IndexedEvents())

	if failed > 0 {
		return fmt.Errorf("%d events could not be indexed", failed)
	}
	return nil
}
