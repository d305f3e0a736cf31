// Package emit renders resolved graphs as a Go composition root.
//
// The generated file declares a Container with one unexported method per
// resolved node and one exported method per request. Scoped nodes are
// memoized on the Container, provider edges become func() T thunks and lazy
// edges become sync.OnceValue thunks. Output is gofmt'ed and deterministic
// for a given manifest.
package emit

import (
	"errors"
	"go/format"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/sghaida/odigraph/di"
	"github.com/sghaida/odigraph/internal/manifest"
)

// DefaultPackage is used when neither the options nor the manifest name one.
const DefaultPackage = "wiring"

var (
	// ErrNoGraphs is returned when there is nothing to emit.
	ErrNoGraphs = errors.New("emit: no graphs")
	// ErrUnsupportedNode is returned for a node the generator cannot call.
	ErrUnsupportedNode = errors.New("emit: unsupported node")
)

// FormatError carries the unformatted source when gofmt rejects the output.
type FormatError struct {
	Src []byte
	Err error
}

func (e *FormatError) Error() string { return "emit: gofmt failed: " + e.Err.Error() }

func (e *FormatError) Unwrap() error { return e.Err }

// Options tune generation.
type Options struct {
	// Package overrides the manifest package name.
	Package string
}

type node struct {
	Num    int
	Type   string
	Expr   string
	Scoped bool
	Doc    string
}

type request struct {
	Method string
	Name   string
	Type   string
	Expr   string
}

type fileData struct {
	Source   string
	Hash     string
	Package  string
	Imports  []string
	Nodes    []node
	Requests []request
}

type generator struct {
	m     *manifest.Manifest
	num   map[*di.ResolvedNode]int
	nodes []*di.ResolvedNode
	sync  bool
}

// Generate renders graphs, which must come from one successful build of m.
func Generate(m *manifest.Manifest, graphs []*di.Graph, opts Options) ([]byte, error) {
	if len(graphs) == 0 {
		return nil, ErrNoGraphs
	}
	g := &generator{m: m, num: map[*di.ResolvedNode]int{}}
	for _, gr := range graphs {
		di.Walk(gr.Root, func(n *di.ResolvedNode) {
			// Aggregates are rendered inline at each use.
			if n.Aggregate != di.ContributeSingle {
				return
			}
			if _, ok := g.num[n]; !ok {
				g.nodes = append(g.nodes, n)
				g.num[n] = len(g.nodes)
			}
		})
	}

	data := fileData{
		Source:  m.Path,
		Hash:    m.Hash,
		Package: firstNonEmpty(opts.Package, m.Package, DefaultPackage),
	}
	for _, n := range g.nodes {
		expr, err := g.body(n)
		if err != nil {
			return nil, err
		}
		data.Nodes = append(data.Nodes, node{
			Num:    g.num[n],
			Type:   g.typeOf(n),
			Expr:   expr,
			Scoped: n.Scoped(),
			Doc:    doc(n),
		})
	}

	seen := map[string]int{}
	for _, gr := range graphs {
		method := exportName(gr.Request.Name)
		if seen[method]++; seen[method] > 1 {
			method += strconv.Itoa(seen[method])
		}
		expr := g.ref(gr.Root)
		if gr.Root.Aggregate != di.ContributeSingle {
			expr = g.aggregate(gr.Root, di.EdgeDirect)
		}
		data.Requests = append(data.Requests, request{
			Method: method,
			Name:   gr.Request.Name,
			Type:   g.typeOf(gr.Root),
			Expr:   expr,
		})
	}

	data.Imports = g.imports()
	var sb strings.Builder
	if err := fileTpl.Execute(&sb, data); err != nil {
		return nil, err
	}
	src := []byte(sb.String())
	out, err := format.Source(src)
	if err != nil {
		return nil, &FormatError{Src: src, Err: err}
	}
	return out, nil
}

// WriteFile writes generated source to path.
func WriteFile(path string, src []byte) error {
	return os.WriteFile(path, src, 0o644)
}

func (g *generator) imports() []string {
	set := map[string]bool{"context": true}
	for _, imp := range g.m.Imports {
		set[imp] = true
	}
	if g.sync {
		set["sync"] = true
	}
	out := make([]string, 0, len(set))
	for imp := range set {
		out = append(out, imp)
	}
	sort.Strings(out)
	return out
}

func (g *generator) ref(n *di.ResolvedNode) string { return "c.n" + strconv.Itoa(g.num[n]) + "()" }

// body is the expression that produces n.
func (g *generator) body(n *di.ResolvedNode) (string, error) {
	switch {
	case n.Absent:
		return "*new(" + g.typeOf(n) + ")", nil
	case n.Producer == nil:
		return "", ErrUnsupportedNode
	}

	p := n.Producer
	call := p.Meta[manifest.MetaCall]
	if call == "" {
		call = "New" + exportName(n.Key.Classifier())
	}
	if names := n.TypeArgNames(); len(names) > 0 {
		targs := make([]string, len(names))
		for i, name := range names {
			targs[i] = g.goType(n.TypeArgs[name])
		}
		call += "[" + strings.Join(targs, ", ") + "]"
	}
	if p.Kind == di.KindInstance || p.Kind == di.KindProperty {
		return call, nil
	}

	var args []string
	if p.Context == di.ContextSuspending || p.Context == di.ContextReactive {
		args = append(args, "c.ctx")
	}
	for _, e := range n.Deps {
		args = append(args, g.arg(e))
	}
	return call + "(" + strings.Join(args, ", ") + ")", nil
}

// arg is the expression passed for one dependency edge.
func (g *generator) arg(e di.Edge) string {
	n := e.Node
	var value, typ string
	if n.Aggregate != di.ContributeSingle {
		value, typ = g.aggregate(n, e.Dependency.Elements), g.aggregateType(n, e.Dependency.Elements)
	} else {
		value, typ = g.ref(n), g.typeOf(n)
	}
	switch e.Dependency.Edge {
	case di.EdgeProvider:
		return "func() " + typ + " { return " + value + " }"
	case di.EdgeLazy:
		g.sync = true
		return "sync.OnceValue(func() " + typ + " { return " + value + " })"
	default:
		return value
	}
}

// aggregate renders the literal of an aggregate node with elements of shape elems.
func (g *generator) aggregate(n *di.ResolvedNode, elems di.EdgeKind) string {
	elemType := g.elemType(n)
	var sb strings.Builder
	sb.WriteString(g.aggregateType(n, elems) + "{")
	for i, en := range n.Entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		if n.Aggregate == di.ContributeMapEntry {
			sb.WriteString(strconv.Quote(en.ID) + ": ")
		}
		switch elems {
		case di.EdgeProvider:
			sb.WriteString("func() " + elemType + " { return " + g.ref(en.Node) + " }")
		case di.EdgeLazy:
			g.sync = true
			sb.WriteString("sync.OnceValue(func() " + elemType + " { return " + g.ref(en.Node) + " })")
		default:
			sb.WriteString(g.ref(en.Node))
		}
	}
	sb.WriteString("}")
	return sb.String()
}

func (g *generator) aggregateType(n *di.ResolvedNode, elems di.EdgeKind) string {
	elem := g.elemType(n)
	if elems.Deferred() {
		elem = "func() " + elem
	}
	if n.Aggregate == di.ContributeMapEntry {
		return "map[string]" + elem
	}
	return "[]" + elem
}

// elemType is the value type of an aggregate: the last type argument of its key.
func (g *generator) elemType(n *di.ResolvedNode) string {
	args := n.Key.Args()
	if len(args) == 0 {
		return "any"
	}
	return g.goType(args[len(args)-1])
}

func (g *generator) typeOf(n *di.ResolvedNode) string {
	if n.Aggregate != di.ContributeSingle {
		return g.aggregateType(n, di.EdgeDirect)
	}
	if n.Producer != nil {
		if t := n.Producer.Meta[manifest.MetaGoType]; t != "" {
			return t
		}
	}
	return g.goType(n.Key)
}

func (g *generator) goType(k di.Key) string {
	if t, ok := g.m.GoType(k.Classifier()); ok {
		return t
	}
	return "any"
}

func doc(n *di.ResolvedNode) string {
	s := n.Key.String() + " in " + strconv.Quote(n.Component)
	switch {
	case n.Absent:
		s += ", absent"
	case n.Producer != nil:
		s += " from " + strconv.Quote(n.Producer.ID)
		if n.Scoped() {
			s += ", scoped " + strconv.Quote(n.Producer.Scope)
		}
	}
	return s
}

// exportName turns a request name into an exported Go identifier.
func exportName(s string) string {
	var sb strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if sb.Len() == 0 && unicode.IsDigit(r) {
			sb.WriteByte('N')
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	if sb.Len() == 0 {
		return "Request"
	}
	return sb.String()
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

var fileTpl = template.Must(template.New("file").Parse(`// Code generated by odigraph; DO NOT EDIT.
{{- if .Source }}
// Manifest: {{ .Source }}
{{- end }}
{{- if .Hash }}
// Manifest-SHA256: {{ .Hash }}
{{- end }}

package {{ .Package }}

import (
{{- range .Imports }}
	"{{ . }}"
{{- end }}
)

// Container holds the instances shared by one composition root.
type Container struct {
	ctx context.Context
{{- range .Nodes }}
{{- if .Scoped }}
	v{{ .Num }}   {{ .Type }}
	has{{ .Num }} bool
{{- end }}
{{- end }}
}

// NewContainer returns an empty Container. ctx is passed to suspending and
// reactive producers.
func NewContainer(ctx context.Context) *Container {
	return &Container{ctx: ctx}
}
{{ range .Requests }}
// {{ .Method }} resolves request "{{ .Name }}".
func (c *Container) {{ .Method }}() {{ .Type }} {
	return {{ .Expr }}
}
{{ end }}
{{- range .Nodes }}
// n{{ .Num }}: {{ .Doc }}
func (c *Container) n{{ .Num }}() {{ .Type }} {
{{- if .Scoped }}
	if !c.has{{ .Num }} {
		c.v{{ .Num }} = {{ .Expr }}
		c.has{{ .Num }} = true
	}
	return c.v{{ .Num }}
{{- else }}
	return {{ .Expr }}
{{- end }}
}
{{ end }}
`))
