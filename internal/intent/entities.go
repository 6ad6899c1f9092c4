package intent

import (
	"fmt"
	"strings"

	"github.com/tsawler/prose/v3"

	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/types"
)

// ExtractEntities runs named-entity recognition over conversational text.
// Results are keyed by the lower-cased entity label (person, gpe, org...);
// repeated labels are joined with ", ".
func ExtractEntities(text string) (out types.Entities) {
	out = types.Entities{}
	if strings.TrimSpace(text) == "" {
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error("intent", fmt.Errorf("panic: %v", r), "entity extraction panicked")
			out = types.Entities{}
		}
	}()

	doc, err := prose.NewDocument(text)
	if err != nil {
		logging.Debug("intent", "entity extraction failed: %v", err)
		return out
	}

	for _, ent := range doc.Entities() {
		label := strings.ToLower(strings.TrimSpace(ent.Label))
		name := strings.TrimSpace(ent.Text)
		if label == "" || name == "" {
			continue
		}
		if prev := out.String(label); prev != "" {
			if strings.Contains(", "+prev+", ", ", "+name+", ") {
				continue
			}
			name = prev + ", " + name
		}
		out[label] = name
	}
	return out
}
