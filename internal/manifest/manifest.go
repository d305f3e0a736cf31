// Package manifest loads declaration manifests and turns them into engine
// input: a type universe, a producer catalog, a component hierarchy and the
// top-level requests.
//
// A manifest is written in YAML, JSON or TOML; the format follows the file
// extension. Every manifest names a schemaVersion that must satisfy
// SchemaConstraint.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// SchemaConstraint is the range of schema versions this package reads.
const SchemaConstraint = "^1"

var (
	// ErrUnknownFormat is returned for a file extension with no decoder.
	ErrUnknownFormat = errors.New("manifest: unknown format")
	// ErrSchemaVersion is returned when schemaVersion is missing or out of range.
	ErrSchemaVersion = errors.New("manifest: unsupported schema version")
)

var schemaRange = mustConstraint(SchemaConstraint)

func mustConstraint(raw string) *semver.Constraints {
	c, err := semver.NewConstraint(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Format is a manifest serialization.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", &Error{Path: path, Err: ErrUnknownFormat}
	}
}

// Manifest is the declaration document.
type Manifest struct {
	SchemaVersion string          `yaml:"schemaVersion" json:"schemaVersion" toml:"schemaVersion"`
	Package       string          `yaml:"package,omitempty" json:"package,omitempty" toml:"package,omitempty"`
	Imports       []string        `yaml:"imports,omitempty" json:"imports,omitempty" toml:"imports,omitempty"`
	Types         []TypeDecl      `yaml:"types,omitempty" json:"types,omitempty" toml:"types,omitempty"`
	Components    []ComponentDecl `yaml:"components,omitempty" json:"components,omitempty" toml:"components,omitempty"`
	Aggregates    []AggregateDecl `yaml:"aggregates,omitempty" json:"aggregates,omitempty" toml:"aggregates,omitempty"`
	Producers     []ProducerDecl  `yaml:"producers,omitempty" json:"producers,omitempty" toml:"producers,omitempty"`
	Requests      []RequestDecl   `yaml:"requests,omitempty" json:"requests,omitempty" toml:"requests,omitempty"`

	// Path and Hash identify the loaded source; they are not serialized.
	Path string `yaml:"-" json:"-" toml:"-"`
	Hash string `yaml:"-" json:"-" toml:"-"`
}

// TypeParamDecl declares a type parameter with upper bounds.
type TypeParamDecl struct {
	Name   string   `yaml:"name" json:"name" toml:"name"`
	Bounds []string `yaml:"bounds,omitempty" json:"bounds,omitempty" toml:"bounds,omitempty"`
}

// TypeDecl declares a classifier. Go is the Go type used by code generation.
type TypeDecl struct {
	Name       string          `yaml:"name" json:"name" toml:"name"`
	Params     []TypeParamDecl `yaml:"params,omitempty" json:"params,omitempty" toml:"params,omitempty"`
	Supertypes []string        `yaml:"supertypes,omitempty" json:"supertypes,omitempty" toml:"supertypes,omitempty"`
	Alias      string          `yaml:"alias,omitempty" json:"alias,omitempty" toml:"alias,omitempty"`
	Universal  bool            `yaml:"universal,omitempty" json:"universal,omitempty" toml:"universal,omitempty"`
	Go         string          `yaml:"go,omitempty" json:"go,omitempty" toml:"go,omitempty"`
}

// ComponentDecl declares a component.
type ComponentDecl struct {
	ID     string   `yaml:"id" json:"id" toml:"id"`
	Parent string   `yaml:"parent,omitempty" json:"parent,omitempty" toml:"parent,omitempty"`
	Scopes []string `yaml:"scopes,omitempty" json:"scopes,omitempty" toml:"scopes,omitempty"`
}

// AggregateDecl declares a possibly empty map or set aggregate.
type AggregateDecl struct {
	Type string `yaml:"type" json:"type" toml:"type"`
	Kind string `yaml:"kind" json:"kind" toml:"kind"`
}

// DependencyDecl is one producer parameter.
type DependencyDecl struct {
	Name     string `yaml:"name" json:"name" toml:"name"`
	Type     string `yaml:"type" json:"type" toml:"type"`
	Edge     string `yaml:"edge,omitempty" json:"edge,omitempty" toml:"edge,omitempty"`
	Optional bool   `yaml:"optional,omitempty" json:"optional,omitempty" toml:"optional,omitempty"`
	Elements string `yaml:"elements,omitempty" json:"elements,omitempty" toml:"elements,omitempty"`
}

// ContributionDecl marks a producer as a map entry or set element.
type ContributionDecl struct {
	Kind      string `yaml:"kind" json:"kind" toml:"kind"`
	Aggregate string `yaml:"aggregate" json:"aggregate" toml:"aggregate"`
	Entry     string `yaml:"entry,omitempty" json:"entry,omitempty" toml:"entry,omitempty"`
}

// ProducerDecl declares a producer. Call is the Go expression invoked by
// generated code; Go overrides the Go type of the produced value.
type ProducerDecl struct {
	ID          string            `yaml:"id" json:"id" toml:"id"`
	Kind        string            `yaml:"kind,omitempty" json:"kind,omitempty" toml:"kind,omitempty"`
	Type        string            `yaml:"type" json:"type" toml:"type"`
	TypeParams  []TypeParamDecl   `yaml:"typeParams,omitempty" json:"typeParams,omitempty" toml:"typeParams,omitempty"`
	Origin      string            `yaml:"origin,omitempty" json:"origin,omitempty" toml:"origin,omitempty"`
	Scope       string            `yaml:"scope,omitempty" json:"scope,omitempty" toml:"scope,omitempty"`
	Context     string            `yaml:"context,omitempty" json:"context,omitempty" toml:"context,omitempty"`
	Body        string            `yaml:"body,omitempty" json:"body,omitempty" toml:"body,omitempty"`
	Policy      string            `yaml:"policy,omitempty" json:"policy,omitempty" toml:"policy,omitempty"`
	Component   string            `yaml:"component,omitempty" json:"component,omitempty" toml:"component,omitempty"`
	Params      []DependencyDecl  `yaml:"params,omitempty" json:"params,omitempty" toml:"params,omitempty"`
	Contributes *ContributionDecl `yaml:"contributes,omitempty" json:"contributes,omitempty" toml:"contributes,omitempty"`
	Call        string            `yaml:"call,omitempty" json:"call,omitempty" toml:"call,omitempty"`
	Go          string            `yaml:"go,omitempty" json:"go,omitempty" toml:"go,omitempty"`
}

// RequestDecl is a top-level request.
type RequestDecl struct {
	Name      string `yaml:"name" json:"name" toml:"name"`
	Type      string `yaml:"type" json:"type" toml:"type"`
	Component string `yaml:"component,omitempty" json:"component,omitempty" toml:"component,omitempty"`
	Optional  bool   `yaml:"optional,omitempty" json:"optional,omitempty" toml:"optional,omitempty"`
}

// Error locates a manifest problem.
type Error struct {
	Path  string
	Where string
	Err   error
}

// Error implements the error interface.
// Example: manifest: app.yaml: producers[2] "db": di: invalid edge "eager"
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("manifest: ")
	if e.Path != "" {
		sb.WriteString(e.Path + ": ")
	}
	if e.Where != "" {
		sb.WriteString(e.Where + ": ")
	}
	if e.Err != nil {
		sb.WriteString(strings.TrimPrefix(e.Err.Error(), "manifest: "))
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

func where(section string, i int, id string) string {
	s := section + "[" + strconv.Itoa(i) + "]"
	if id != "" {
		s += " " + strconv.Quote(id)
	}
	return s
}

// Load reads, decodes and version-checks the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	m, err := Decode(raw, f)
	if err != nil {
		var me *Error
		if errors.As(err, &me) {
			me.Path = path
			return nil, me
		}
		return nil, &Error{Path: path, Err: err}
	}
	m.Path = filepath.ToSlash(path)
	return m, nil
}

// Decode parses raw in format f. Unknown fields are rejected.
func Decode(raw []byte, f Format) (*Manifest, error) {
	var m Manifest
	switch f {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, &Error{Err: err}
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, &Error{Err: err}
		}
	case FormatTOML:
		if err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&m); err != nil {
			return nil, &Error{Err: err}
		}
	default:
		return nil, &Error{Err: ErrUnknownFormat}
	}
	if err := checkSchema(m.SchemaVersion); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	m.Hash = hex.EncodeToString(sum[:])
	return &m, nil
}

func checkSchema(raw string) error {
	if raw == "" {
		return &Error{Where: "schemaVersion", Err: ErrSchemaVersion}
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return &Error{Where: "schemaVersion", Err: errors.Join(ErrSchemaVersion, err)}
	}
	if !schemaRange.Check(v) {
		return &Error{Where: "schemaVersion " + strconv.Quote(raw), Err: ErrSchemaVersion}
	}
	return nil
}

// Encode serializes m in format f.
func Encode(m *Manifest, f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		return json.MarshalIndent(m, "", "  ")
	case FormatTOML:
		return toml.Marshal(m)
	default:
		return nil, &Error{Err: ErrUnknownFormat}
	}
}

// GoType returns the Go type declared for classifier name.
func (m *Manifest) GoType(name string) (string, bool) {
	for _, t := range m.Types {
		if t.Name == name && t.Go != "" {
			return t.Go, true
		}
	}
	return "", false
}
