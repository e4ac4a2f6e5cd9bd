// Package ast defines the syntax tree produced by the parser for the
// Mycelial network-description language (spec.md §6). Handler, rule, and
// on-rest/on-cycle bodies are kept as their raw balanced-brace source text
// rather than a full statement tree: §4.8 scopes the parser/lowering
// contract to producing a NetworkDescriptor (frequency catalog, agent
// specs, sockets, fruiting bodies), not to executing handler semantics.
// Running networks bind host-supplied Go closures to the declared
// (hyphal, frequency) pairs; the raw body text travels in the descriptor's
// CODE section for documentation and tooling, not interpretation.
package ast

// Span locates a token or node in the original source.
type Span struct {
	Line, Col, Offset int
}

// Field is a name:type declaration, used for frequency fields, type
// fields, state fields, and rule parameters.
type Field struct {
	Name string
	Type string
	Span Span
}

// FrequencyDecl declares a named, typed message kind.
type FrequencyDecl struct {
	Name   string
	Fields []Field
	Span   Span
}

// TypeDecl declares a composite payload type.
type TypeDecl struct {
	Name   string
	Fields []Field
	Span   Span
}

// OnSignal is a `on signal(<freq>, <binding>) [where <expr>] { <body> }`
// handler. Where is the raw guard expression text (empty if absent). Body
// is the raw, balanced-brace handler text. EmitFreqs/StateRefs/PayloadRefs
// are populated by a lightweight lexical scan of Body (see the parser's
// scanBody) and used
// for the reference-declared checks in spec.md §4.8.
type OnSignal struct {
	FreqName   string
	Binding    string
	Where      string
	Body       string
	EmitFreqs  []string
	StateRefs  []string
	PayloadRefs []string
	Span       Span
}

// RuleDecl is a named callable helper: `rule <name>(args) -> <ret> { ... }`.
type RuleDecl struct {
	Name   string
	Params []Field
	Return string
	Body   string
	Span   Span
}

// HyphalDecl declares one agent template.
type HyphalDecl struct {
	Name      string
	State     []Field
	OnSignals []OnSignal
	OnRest    string // raw body, "" if absent
	OnCycle   string // raw body, "" if absent
	Rules     []RuleDecl
	Span      Span
}

// SpawnDecl instantiates a hyphal under a topology-local id.
type SpawnDecl struct {
	Hyphal string
	ID     string
	Span   Span
}

// FruitingBodyDecl declares an exogenous entry/exit point.
type FruitingBodyDecl struct {
	Name string
	Span Span
}

// SocketDecl wires one declared signal flow between a source and
// destination id at a given frequency. Source/Dest name either a spawned
// agent id or a fruiting body.
type SocketDecl struct {
	Source string
	Dest   string
	Freq   string
	Span   Span
}

// TopologyDecl is the network's wiring: spawned agents, fruiting bodies,
// and the sockets connecting them.
type TopologyDecl struct {
	Spawns         []SpawnDecl
	FruitingBodies []FruitingBodyDecl
	Sockets        []SocketDecl
	Span           Span
}

// Network is the root of a parsed source file.
type Network struct {
	Name        string
	Frequencies []FrequencyDecl
	Types       []TypeDecl
	Hyphae      []HyphalDecl
	Topology    TopologyDecl
	Span        Span
}
