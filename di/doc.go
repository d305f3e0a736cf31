// Package di resolves declared producers into validated dependency graphs.
//
// The engine works on data, not on reflection: a front end declares the type
// universe, the producers and the component hierarchy, then asks a Session to
// resolve top-level requests. A successful build yields one ResolvedNode graph
// per request; a failed build yields a list of structured Diagnostics and no
// graph at all.
//
// Pieces, leaves first:
//
//   - Key / Universe: canonical type identity (qualifiers, generics,
//     nullability, alias expansion) and assignability.
//   - Catalog: producers indexed by the keys they satisfy.
//   - Resolver: exact tier before assignable tier, explicit before implicit
//     internal before implicit external, plus the scope check.
//   - Builder: memoized per (key, component) resolution with cycle detection.
//     Cycles are legal only through a provider or lazy edge.
//   - Aggregator: parent-first merge of map and set contributions.
//   - Execution contexts: plain, suspending and reactive compatibility.
//
// Quick start
//
//	u := di.NewUniverse()
//	c := di.NewCatalog(u).MustRegister(
//	  &di.Producer{ID: "five", Key: u.MustParseKey("Int")},
//	  &di.Producer{ID: "str", Key: u.MustParseKey("String"), Origin: di.OriginImplicitInternal,
//	    Params: []di.Dependency{{Name: "int", Key: u.MustParseKey("Int")}}},
//	)
//	h := di.MustHierarchy(di.Component{ID: "app"})
//	s, _ := di.NewSession(u, c, h)
//	res, err := s.Build(ctx, di.Request{Key: u.MustParseKey("String"), Component: "app"})
//
// Import
//
//	"github.com/sghaida/odigraph/di"
package di
