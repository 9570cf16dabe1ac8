package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/khanglvm/event-hub/internal/config"
	"github.com/khanglvm/event-hub/internal/engine"
	"github.com/khanglvm/event-hub/internal/logging"
	"github.com/khanglvm/event-hub/internal/models"
	"github.com/khanglvm/event-hub/internal/storage"
)

// openStore opens only the storage backend, for commands that do not
// search or embed.
func openStore(ctx context.Context) (storage.Storage, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	store, err := engine.OpenStorage(ctx, cfg, logging.Logger())
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

// confirm asks a yes/no question. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s (y/N): ", prompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// exportRecord is one behavior event in 'learning export' output.
type exportRecord struct {
	UserID    string            `json:"user_id"`
	Action    string            `json:"action_type"`
	EventID   string            `json:"event_id,omitempty"`
	Query     string            `json:"query,omitempty"`
	Timestamp string            `json:"timestamp"`
	SessionID string            `json:"session_id,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Weight    float64           `json:"weight"`
}

// exportRecords flattens behavior events and annotates their preference weight.
func exportRecords(events []models.BehaviorEvent) []exportRecord {
	records := make([]exportRecord, len(events))
	for i, ev := range events {
		records[i] = exportRecord{
			UserID:    ev.UserID,
			Action:    string(ev.ActionType),
			EventID:   ev.EventID,
			Query:     ev.Query,
			Timestamp: ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			SessionID: ev.SessionID,
			Context:   ev.Context,
			Weight:    ev.ActionType.PreferenceWeight(),
		}
	}
	return records
}
