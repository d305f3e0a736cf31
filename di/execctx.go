package di

// Compatible reports whether a dependency running in dep may be invoked
// directly by a consumer body running in consumer. Plain is accepted
// everywhere, suspending needs a suspending or reactive consumer and reactive
// needs a reactive consumer.
func Compatible(dep, consumer ExecContext) bool {
	dep, consumer = dep.effective(), consumer.effective()
	switch dep {
	case ContextPlain:
		return true
	case ContextSuspending:
		return consumer == ContextSuspending || consumer == ContextReactive
	case ContextReactive:
		return consumer == ContextReactive
	default:
		return false
	}
}

// MutuallyCompatible reports whether two direct dependencies can be invoked
// from one body.
func MutuallyCompatible(a, b ExecContext) bool {
	a, b = a.effective(), b.effective()
	return a == ContextPlain || b == ContextPlain || a == b
}

type directCall struct {
	name string
	node *ResolvedNode
}

// directCalls lists the dependencies n's body invokes synchronously.
// Deferred edges, deferred aggregate elements and absent values are skipped.
func directCalls(n *ResolvedNode) []directCall {
	var out []directCall
	for _, e := range n.Deps {
		if e.Dependency.Deferred() || e.Node == nil || e.Node.Absent {
			continue
		}
		name := e.Dependency.Name
		if name == "" {
			name = e.Dependency.Key.String()
		}
		if e.Node.Aggregate != ContributeSingle {
			if e.Dependency.Elements.Deferred() {
				continue
			}
			for _, en := range e.Node.Entries {
				out = append(out, directCall{name: name + "[" + en.ID + "]", node: en.Node})
			}
			continue
		}
		out = append(out, directCall{name: name, node: e.Node})
	}
	return out
}

// checkContexts validates one node against its direct dependencies.
func checkContexts(n *ResolvedNode) []Diagnostic {
	if n.Producer == nil {
		return nil
	}
	body := n.Producer.BodyContext()
	calls := directCalls(n)
	var out []Diagnostic
	for _, c := range calls {
		if !Compatible(c.node.Context, body) {
			out = append(out, Diagnostic{
				Kind:       ContextMismatch,
				Key:        n.Key,
				Component:  n.Component,
				Producer:   n.Producer.ID,
				Candidates: []string{c.name},
				Detail:     c.node.Context.String() + " dependency in " + body.String() + " body",
			})
		}
	}
	for i := 0; i < len(calls); i++ {
		for j := i + 1; j < len(calls); j++ {
			a, b := calls[i], calls[j]
			if !MutuallyCompatible(a.node.Context, b.node.Context) {
				out = append(out, Diagnostic{
					Kind:       ContextMismatch,
					Key:        n.Key,
					Component:  n.Component,
					Producer:   n.Producer.ID,
					Candidates: []string{a.name, b.name},
					Detail:     a.node.Context.String() + " and " + b.node.Context.String() + " dependencies combined directly",
				})
			}
		}
	}
	return out
}

// CheckContexts walks the graph under root and validates every node. It is
// safe on graphs closed by deferred cycles.
func CheckContexts(root *ResolvedNode) []Diagnostic {
	var out []Diagnostic
	Walk(root, func(n *ResolvedNode) {
		out = append(out, checkContexts(n)...)
	})
	return out
}
