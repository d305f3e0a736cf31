package di

import (
	"strconv"
	"strings"
)

// Dump renders the graph under root in a canonical text form. Nodes are
// numbered in Walk order and printed once; edges refer to node numbers, so
// shared and cyclic nodes are rendered without repetition.
//
//	#1 String <- "str" implicit-internal in "app"
//	  int: direct #2
//	#2 Int <- "five" explicit in "app"
func Dump(root *ResolvedNode) string {
	nodes := Nodes(root)
	num := make(map[*ResolvedNode]int, len(nodes))
	for i, n := range nodes {
		num[n] = i + 1
	}
	ref := func(n *ResolvedNode) string { return "#" + strconv.Itoa(num[n]) }

	var sb strings.Builder
	for _, n := range nodes {
		sb.WriteString(ref(n))
		sb.WriteByte(' ')
		sb.WriteString(n.Key.String())
		switch {
		case n.Absent:
			sb.WriteString(" absent")
		case n.Aggregate != ContributeSingle:
			sb.WriteString(" " + n.Aggregate.String() + " aggregate")
		case n.Producer != nil:
			sb.WriteString(" <- " + strconv.Quote(n.Producer.ID) + " " + n.Producer.Origin.String())
			if n.Producer.Scope != "" {
				sb.WriteString(" scoped " + strconv.Quote(n.Producer.Scope))
			}
			if n.Context != ContextPlain {
				sb.WriteString(" " + n.Context.String())
			}
			if names := n.TypeArgNames(); len(names) > 0 {
				args := make([]string, len(names))
				for i, name := range names {
					args[i] = name + "=" + n.TypeArgs[name].String()
				}
				sb.WriteString(" [" + strings.Join(args, ", ") + "]")
			}
		}
		sb.WriteString(" in " + strconv.Quote(n.Component))
		sb.WriteByte('\n')
		for _, e := range n.Deps {
			name := e.Dependency.Name
			if name == "" {
				name = "_"
			}
			sb.WriteString("  " + name + ": " + e.Dependency.Edge.String())
			if e.Node != nil && e.Node.Aggregate != ContributeSingle {
				sb.WriteString(" of " + e.Dependency.Elements.String())
			}
			if e.Dependency.Optional {
				sb.WriteString(" optional")
			}
			sb.WriteString(" " + ref(e.Node) + "\n")
		}
		for _, e := range n.Entries {
			sb.WriteString("  [" + strconv.Quote(e.ID) + "] " + ref(e.Node) + "\n")
		}
	}
	return sb.String()
}

// DumpGraph renders g with a header naming its request.
func DumpGraph(g *Graph) string {
	name := g.Request.Name
	if name == "" {
		name = g.Request.Key.String()
	}
	return "request " + strconv.Quote(name) + ": " + g.Request.Key.String() + " in " + strconv.Quote(g.Request.Component) + "\n" + Dump(g.Root)
}
