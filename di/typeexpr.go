package di

import (
	"strconv"
	"strings"
	"unicode"
)

// PlaceholderName is the textual form of an unresolved (error) type.
const PlaceholderName = "<error>"

// TypeExpr is a declared type as handed over by a front end, before alias
// expansion and validation. Unlike Key it may be a placeholder or refer to a
// free type parameter.
type TypeExpr struct {
	Name        string
	Args        []TypeExpr
	Qualifiers  []Qualifier
	Nullable    bool
	Placeholder bool
	TypeParam   bool
}

// String renders the expression in the notation accepted by ParseTypeExpr.
func (e TypeExpr) String() string {
	var sb strings.Builder
	for _, q := range e.Qualifiers {
		sb.WriteString(q.String())
		sb.WriteByte(' ')
	}
	if e.Placeholder {
		sb.WriteString(PlaceholderName)
	} else {
		if e.TypeParam {
			sb.WriteByte('$')
		}
		sb.WriteString(e.Name)
	}
	if len(e.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range e.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
	}
	if e.Nullable {
		sb.WriteByte('?')
	}
	return sb.String()
}

// TypeSyntaxError reports a malformed type expression.
type TypeSyntaxError struct {
	Input  string
	Offset int
	Reason string
}

// Error implements the error interface.
func (e TypeSyntaxError) Error() string {
	// Example: di: bad type expression "Map<String" at 10: expected '>'
	return "di: bad type expression " + strconv.Quote(e.Input) + " at " + strconv.Itoa(e.Offset) + ": " + e.Reason
}

// ParseTypeExpr parses the textual type notation:
//
//	@Named("primary") Map<String, List<Foo>?>?
//
// Qualifiers precede the type name, type arguments are enclosed in <> and a
// trailing ? marks nullability. The name <error> denotes a placeholder type and
// a leading $ marks a type parameter ($T).
func ParseTypeExpr(s string) (TypeExpr, error) {
	p := &typeParser{in: s}
	e, err := p.parseType()
	if err != nil {
		return TypeExpr{}, err
	}
	p.skipSpace()
	if p.pos != len(p.in) {
		return TypeExpr{}, p.fail("unexpected trailing input")
	}
	return e, nil
}

// MustParseTypeExpr is ParseTypeExpr that panics on error.
func MustParseTypeExpr(s string) TypeExpr {
	e, err := ParseTypeExpr(s)
	if err != nil {
		panic(err)
	}
	return e
}

type typeParser struct {
	in  string
	pos int
}

func (p *typeParser) fail(reason string) error {
	return TypeSyntaxError{Input: p.in, Offset: p.pos, Reason: reason}
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.in) && unicode.IsSpace(rune(p.in[p.pos])) {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	if p.pos >= len(p.in) {
		return 0
	}
	return p.in[p.pos]
}

func (p *typeParser) parseType() (TypeExpr, error) {
	var e TypeExpr
	for {
		p.skipSpace()
		if p.peek() != '@' {
			break
		}
		p.pos++
		q, err := p.parseQualifier()
		if err != nil {
			return TypeExpr{}, err
		}
		e.Qualifiers = append(e.Qualifiers, q)
	}

	p.skipSpace()
	if strings.HasPrefix(p.in[p.pos:], PlaceholderName) {
		p.pos += len(PlaceholderName)
		e.Placeholder = true
		e.Name = PlaceholderName
	} else {
		if p.peek() == '$' {
			p.pos++
			e.TypeParam = true
		}
		name := p.ident(true)
		if name == "" {
			return TypeExpr{}, p.fail("expected type name")
		}
		e.Name = name
	}

	p.skipSpace()
	if p.peek() == '<' {
		p.pos++
		for {
			arg, err := p.parseType()
			if err != nil {
				return TypeExpr{}, err
			}
			e.Args = append(e.Args, arg)
			p.skipSpace()
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case '>':
				p.pos++
			default:
				return TypeExpr{}, p.fail("expected ',' or '>'")
			}
			break
		}
	}

	p.skipSpace()
	if p.peek() == '?' {
		p.pos++
		e.Nullable = true
	}
	return e, nil
}

func (p *typeParser) parseQualifier() (Qualifier, error) {
	name := p.ident(true)
	if name == "" {
		return Qualifier{}, p.fail("expected qualifier name")
	}
	q := Qualifier{Name: name}
	if p.peek() != '(' {
		return q, nil
	}
	p.pos++
	for {
		p.skipSpace()
		arg, err := p.qualifierArg()
		if err != nil {
			return Qualifier{}, err
		}
		q.Args = append(q.Args, arg)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			continue
		case ')':
			p.pos++
			return q, nil
		default:
			return Qualifier{}, p.fail("expected ',' or ')'")
		}
	}
}

// qualifierArg reads a quoted string literal (kept quoted) or a bare token.
func (p *typeParser) qualifierArg() (string, error) {
	if p.peek() == '"' {
		start := p.pos
		p.pos++
		for p.pos < len(p.in) {
			switch p.in[p.pos] {
			case '\\':
				p.pos += 2
				continue
			case '"':
				p.pos++
				lit := p.in[start:p.pos]
				if _, err := strconv.Unquote(lit); err != nil {
					return "", p.fail("bad string literal")
				}
				return lit, nil
			}
			p.pos++
		}
		return "", p.fail("unterminated string literal")
	}
	start := p.pos
	for p.pos < len(p.in) {
		c := p.in[p.pos]
		if c == ',' || c == ')' || unicode.IsSpace(rune(c)) {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return "", p.fail("expected qualifier argument")
	}
	return p.in[start:p.pos], nil
}

// ident reads a (possibly dotted) identifier.
func (p *typeParser) ident(dotted bool) string {
	start := p.pos
	for p.pos < len(p.in) {
		r := rune(p.in[p.pos])
		if r == '_' || unicode.IsLetter(r) || (p.pos > start && unicode.IsDigit(r)) || (dotted && r == '.' && p.pos > start) {
			p.pos++
			continue
		}
		break
	}
	return p.in[start:p.pos]
}
