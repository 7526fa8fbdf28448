package rag

import (
	"sort"
	"strings"

	"github.com/anishks07/SupaQuery/internal/chunk"
	"github.com/anishks07/SupaQuery/internal/graph"
)

// DefaultContextBudget caps assembled context in characters, keeping prompts
// inside the generation model's window.
const DefaultContextBudget = 12000

// truncationMarker tells the model (and debugging humans) that context was
// cut, so a partial final excerpt is not mistaken for a complete one.
const truncationMarker = "[context truncated]"

// BuildContext renders retrieved chunks into the prompt context: one
// "[source]: text" block per chunk in rank order, followed by an entity
// digest grouping the mentioned entities that survived retrieval. Output
// never exceeds budget characters.
func BuildContext(chunks []RetrievedChunk, budget int) string {
	if len(chunks) == 0 {
		return ""
	}
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	var b strings.Builder
	truncated := false
	for _, c := range chunks {
		block := "[" + sourceLabel(c) + "]: " + strings.TrimSpace(c.Text) + "\n\n"
		if b.Len()+len(block)+len(truncationMarker) > budget {
			truncated = true
			break
		}
		b.WriteString(block)
	}

	if digest := entityDigest(chunks); digest != "" && !truncated {
		if b.Len()+len(digest)+len(truncationMarker) <= budget {
			b.WriteString(digest)
		}
	}
	if truncated {
		b.WriteString(truncationMarker)
	}
	return strings.TrimRight(b.String(), "\n")
}

// sourceLabel is the provenance tag for a chunk: the filename plus its
// citation when one decodes.
func sourceLabel(c RetrievedChunk) string {
	label := c.Source
	if label == "" {
		label = c.DocID
	}
	if c.Citation != "" {
		if cit, err := chunk.DecodeCitation(c.Citation); err == nil {
			if loc := cit.Label(); loc != "" {
				label += ", " + loc
			}
		}
	}
	return label
}

// entityRoster renders document entities grouped by type for
// entity-focused prompts. Within a type, names keep their mention-count
// order.
func entityRoster(entities []graph.DocEntity) string {
	if len(entities) == 0 {
		return ""
	}
	byType := make(map[string][]string)
	for _, e := range entities {
		byType[e.Type] = append(byType[e.Type], e.Name)
	}
	types := make([]string, 0, len(byType))
	for typ := range byType {
		types = append(types, typ)
	}
	sort.Strings(types)

	var b strings.Builder
	b.WriteString("Known entities:\n")
	for _, typ := range types {
		b.WriteString(typ + ": " + strings.Join(byType[typ], ", ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// entityDigest summarizes entities the retrieved chunks mention, one line,
// deduplicated and sorted for stable prompts.
func entityDigest(chunks []RetrievedChunk) string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range chunks {
		for _, name := range c.Entities {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return "Entities mentioned: " + strings.Join(names, ", ") + "\n"
}
