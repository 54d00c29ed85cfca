package meaningpack

import (
	"context"
	"fmt"
	"strings"
)

// DiagramResult is a rendered Mermaid flowchart of a project's detected
// boundaries and message flows, built from the same classify() pipeline
// Generate and Focus use rather than a second evidence model.
type DiagramResult struct {
	Mermaid string
}

// Diagram renders a "flowchart LR" Mermaid diagram: entrypoints,
// boundary candidates, contracts, and broker candidates become nodes;
// each FlowEdge becomes an edge from its owning contract to the channel
// it names, labeled with the flow's direction.
func (g *Generator) Diagram(ctx context.Context) (*DiagramResult, error) {
	comp, err := g.classify(ctx, DefaultMapDepth, DefaultMapLimit, DefaultMaxBounds)
	if err != nil {
		return nil, err
	}

	ids := newDiagramIDs()
	var sb strings.Builder
	sb.WriteString("flowchart LR\n")

	if len(comp.entrypoints) > 0 {
		sb.WriteString("  subgraph Entrypoints\n")
		for _, f := range comp.entrypoints {
			fmt.Fprintf(&sb, "    %s[%s]\n", ids.id(f), mermaidLabel(f))
		}
		sb.WriteString("  end\n")
	}

	if len(comp.boundaries) > 0 {
		sb.WriteString("  subgraph Boundaries\n")
		for _, b := range comp.boundaries {
			fmt.Fprintf(&sb, "    %s{{%s}}\n", ids.id(b.File), mermaidLabel(fmt.Sprintf("%s: %s", b.Kind, b.File)))
		}
		sb.WriteString("  end\n")
	}

	for _, c := range comp.contracts {
		fmt.Fprintf(&sb, "  %s[/%s/]\n", ids.id(c), mermaidLabel(c))
	}

	for _, br := range comp.brokers {
		fmt.Fprintf(&sb, "  %s((%s))\n", ids.id(br.File), mermaidLabel(fmt.Sprintf("%s: %s", br.Proto, br.File)))
	}

	for _, fl := range comp.flows {
		channelID := ids.id("channel:" + fl.Channel)
		fmt.Fprintf(&sb, "  %s[%s]\n", channelID, mermaidLabel(fl.Channel))
		fmt.Fprintf(&sb, "  %s -- %s --> %s\n", ids.id(fl.ContractFile), fl.Direction, channelID)
	}

	return &DiagramResult{Mermaid: sb.String()}, nil
}

// diagramIDs mints stable, sequential Mermaid node ids ("n0", "n1", ...)
// for a set of keys, deduplicating repeated keys (the same file can be
// both an entrypoint and a flow's contract file).
type diagramIDs struct {
	ids map[string]string
}

func newDiagramIDs() *diagramIDs {
	return &diagramIDs{ids: make(map[string]string)}
}

func (d *diagramIDs) id(key string) string {
	if id, ok := d.ids[key]; ok {
		return id
	}
	id := fmt.Sprintf("n%d", len(d.ids))
	d.ids[key] = id
	return id
}

// mermaidLabel quotes a node label so path separators and other
// Mermaid-significant characters don't break the diagram's syntax.
func mermaidLabel(s string) string {
	escaped := strings.ReplaceAll(s, `"`, `#quot;`)
	return `"` + escaped + `"`
}
