package evaluate

import "specstore/pkg/specification"

// IncludePaths reconstructs hierarchical navigation paths from the flat
// include node list, purely by insertion order: an Include node flushes the
// accumulated path and starts a new one, a ThenInclude node appends one more
// segment. A selector that is not a direct member access contributes no
// segment and is skipped silently; that is a documented soft-failure, not an
// error. Interleaving two independent chains without completing one before
// starting the next corrupts both, so chains must be recorded contiguously.
func IncludePaths(nodes []specification.IncludeNode) []string {
	var out []string
	var current string
	for _, n := range nodes {
		name := n.Selector.MemberName()
		if name == "" {
			continue
		}
		switch n.Kind {
		case specification.KindInclude:
			if current != "" {
				out = append(out, current)
			}
			current = name
		case specification.KindThenInclude:
			if current == "" {
				current = name
			} else {
				current += "." + name
			}
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}
