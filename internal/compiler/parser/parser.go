// Package parser implements a hand-written recursive-descent parser over
// the Mycelial network-description grammar (spec.md §6), producing an
// ast.Network. There is no separate CFG/grammar file or parser generator:
// no repo in the retrieval pack reaches for one, so this follows the
// pack's general preference for small explicit hand-written state (the
// same preference pkg/queue and pkg/routing follow over a generic
// container library).
package parser

import (
	"mycelial/internal/compiler/ast"
	"mycelial/internal/compiler/lexer"
	"mycelial/internal/errs"
)

// Parser consumes a token stream with one token of lookahead.
type Parser struct {
	lex  *lexer.Lexer
	tok  lexer.Token
	peek *lexer.Token
}

// New creates a Parser over src.
func New(src string) (*Parser, error) {
	p := &Parser{lex: lexer.New(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *Parser) span() errs.Span {
	return errs.Span{Line: p.tok.Span.Line, Col: p.tok.Span.Col, Offset: p.tok.Span.Offset}
}

func (p *Parser) fail(op, msg string) error {
	return errs.NewAt(op, errs.KindLexical, p.span(), msg)
}

func (p *Parser) expectSymbol(s string) error {
	if p.tok.Kind != lexer.Symbol || p.tok.Text != s {
		return p.fail("parser.expectSymbol", "expected '"+s+"', got '"+p.tok.Text+"'")
	}
	return p.advance()
}

func (p *Parser) expectIdent(word string) error {
	if p.tok.Kind != lexer.Ident || p.tok.Text != word {
		return p.fail("parser.expectIdent", "expected '"+word+"', got '"+p.tok.Text+"'")
	}
	return p.advance()
}

func (p *Parser) expectIdentAny() (string, error) {
	if p.tok.Kind != lexer.Ident {
		return "", p.fail("parser.expectIdentAny", "expected identifier, got '"+p.tok.Text+"'")
	}
	text := p.tok.Text
	return text, p.advance()
}

func (p *Parser) atSymbol(s string) bool { return p.tok.Kind == lexer.Symbol && p.tok.Text == s }
func (p *Parser) atIdent(w string) bool  { return p.tok.Kind == lexer.Ident && p.tok.Text == w }

// Parse consumes the whole token stream and returns the parsed network.
func (p *Parser) Parse() (*ast.Network, error) {
	net := &ast.Network{Span: ast.Span(p.tok.Span)}
	if err := p.expectIdent("network"); err != nil {
		return nil, err
	}
	name, err := p.expectIdentAny()
	if err != nil {
		return nil, err
	}
	net.Name = name
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}

	for !p.atSymbol("}") {
		switch {
		case p.atIdent("frequencies"):
			freqs, err := p.parseFrequencies()
			if err != nil {
				return nil, err
			}
			net.Frequencies = freqs
		case p.atIdent("types"):
			types, err := p.parseTypes()
			if err != nil {
				return nil, err
			}
			net.Types = types
		case p.atIdent("hyphae"):
			hyphae, err := p.parseHyphae()
			if err != nil {
				return nil, err
			}
			net.Hyphae = hyphae
		case p.atIdent("topology"):
			topo, err := p.parseTopology()
			if err != nil {
				return nil, err
			}
			net.Topology = topo
		default:
			return nil, p.fail("parser.Parse", "unexpected top-level section '"+p.tok.Text+"'")
		}
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}
	return net, nil
}

func (p *Parser) parseFieldList() ([]ast.Field, error) {
	var fields []ast.Field
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	for !p.atSymbol("}") {
		sp := p.tok.Span
		name, err := p.expectIdentAny()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(":"); err != nil {
			return nil, err
		}
		typ, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.Field{Name: name, Type: typ, Span: ast.Span(sp)})
		if p.atSymbol(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return fields, p.expectSymbol("}")
}

// parseTypeRef parses a primitive or composite (vec<T>, map<K,V>) type name.
func (p *Parser) parseTypeRef() (string, error) {
	base, err := p.expectIdentAny()
	if err != nil {
		return "", err
	}
	if !p.atSymbol("<") {
		return base, nil
	}
	if err := p.advance(); err != nil {
		return "", err
	}
	inner, err := p.expectIdentAny()
	if err != nil {
		return "", err
	}
	full := base + "<" + inner
	if p.atSymbol(",") {
		if err := p.advance(); err != nil {
			return "", err
		}
		second, err := p.expectIdentAny()
		if err != nil {
			return "", err
		}
		full += "," + second
	}
	full += ">"
	if err := p.expectSymbol(">"); err != nil {
		return "", err
	}
	return full, nil
}

func (p *Parser) parseFrequencies() ([]ast.FrequencyDecl, error) {
	if err := p.advance(); err != nil { // consume "frequencies"
		return nil, err
	}
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	var decls []ast.FrequencyDecl
	for !p.atSymbol("}") {
		sp := p.tok.Span
		name, err := p.expectIdentAny()
		if err != nil {
			return nil, err
		}
		fields, err := p.parseFieldList()
		if err != nil {
			return nil, err
		}
		decls = append(decls, ast.FrequencyDecl{Name: name, Fields: fields, Span: ast.Span(sp)})
	}
	return decls, p.expectSymbol("}")
}

func (p *Parser) parseTypes() ([]ast.TypeDecl, error) {
	if err := p.advance(); err != nil { // consume "types"
		return nil, err
	}
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	var decls []ast.TypeDecl
	for !p.atSymbol("}") {
		sp := p.tok.Span
		name, err := p.expectIdentAny()
		if err != nil {
			return nil, err
		}
		fields, err := p.parseFieldList()
		if err != nil {
			return nil, err
		}
		decls = append(decls, ast.TypeDecl{Name: name, Fields: fields, Span: ast.Span(sp)})
	}
	return decls, p.expectSymbol("}")
}

// parseBalancedBody consumes a '{'-opened, '}'-closed block and returns its
// raw text (exclusive of the outer braces), tracking nesting depth so
// embedded blocks (if-bodies, etc.) do not terminate it early.
func (p *Parser) parseBalancedBody() (string, error) {
	if err := p.expectSymbol("{"); err != nil {
		return "", err
	}
	depth := 1
	var sb []byte
	for depth > 0 {
		if p.tok.Kind == lexer.EOF {
			return "", p.fail("parser.parseBalancedBody", "unterminated block")
		}
		if p.atSymbol("{") {
			depth++
		} else if p.atSymbol("}") {
			depth--
			if depth == 0 {
				break
			}
		}
		sb = append(sb, []byte(p.tok.Text)...)
		sb = append(sb, ' ')
		if err := p.advance(); err != nil {
			return "", err
		}
	}
	return string(sb), p.expectSymbol("}")
}

func (p *Parser) parseHyphae() ([]ast.HyphalDecl, error) {
	if err := p.advance(); err != nil { // consume "hyphae"
		return nil, err
	}
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	var decls []ast.HyphalDecl
	for !p.atSymbol("}") {
		h, err := p.parseHyphal()
		if err != nil {
			return nil, err
		}
		decls = append(decls, h)
	}
	return decls, p.expectSymbol("}")
}

func (p *Parser) parseHyphal() (ast.HyphalDecl, error) {
	sp := p.tok.Span
	if err := p.expectIdent("hyphal"); err != nil {
		return ast.HyphalDecl{}, err
	}
	name, err := p.expectIdentAny()
	if err != nil {
		return ast.HyphalDecl{}, err
	}
	h := ast.HyphalDecl{Name: name, Span: ast.Span(sp)}
	if err := p.expectSymbol("{"); err != nil {
		return ast.HyphalDecl{}, err
	}
	for !p.atSymbol("}") {
		switch {
		case p.atIdent("state"):
			if err := p.advance(); err != nil {
				return ast.HyphalDecl{}, err
			}
			fields, err := p.parseFieldList()
			if err != nil {
				return ast.HyphalDecl{}, err
			}
			h.State = fields
		case p.atIdent("on"):
			if err := p.advance(); err != nil {
				return ast.HyphalDecl{}, err
			}
			switch {
			case p.atIdent("signal"):
				onSig, err := p.parseOnSignal()
				if err != nil {
					return ast.HyphalDecl{}, err
				}
				h.OnSignals = append(h.OnSignals, onSig)
			case p.atIdent("rest"):
				if err := p.advance(); err != nil {
					return ast.HyphalDecl{}, err
				}
				body, err := p.parseBalancedBody()
				if err != nil {
					return ast.HyphalDecl{}, err
				}
				h.OnRest = body
			case p.atIdent("cycle"):
				if err := p.advance(); err != nil {
					return ast.HyphalDecl{}, err
				}
				body, err := p.parseBalancedBody()
				if err != nil {
					return ast.HyphalDecl{}, err
				}
				h.OnCycle = body
			default:
				return ast.HyphalDecl{}, p.fail("parser.parseHyphal", "expected 'signal', 'rest', or 'cycle' after 'on'")
			}
		case p.atIdent("rule"):
			rule, err := p.parseRule()
			if err != nil {
				return ast.HyphalDecl{}, err
			}
			h.Rules = append(h.Rules, rule)
		default:
			return ast.HyphalDecl{}, p.fail("parser.parseHyphal", "unexpected token '"+p.tok.Text+"' in hyphal body")
		}
	}
	return h, p.expectSymbol("}")
}

func (p *Parser) parseOnSignal() (ast.OnSignal, error) {
	sp := p.tok.Span
	if err := p.expectIdent("signal"); err != nil {
		return ast.OnSignal{}, err
	}
	if err := p.expectSymbol("("); err != nil {
		return ast.OnSignal{}, err
	}
	freq, err := p.expectIdentAny()
	if err != nil {
		return ast.OnSignal{}, err
	}
	if err := p.expectSymbol(","); err != nil {
		return ast.OnSignal{}, err
	}
	binding, err := p.expectIdentAny()
	if err != nil {
		return ast.OnSignal{}, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return ast.OnSignal{}, err
	}
	var where string
	if p.atIdent("where") {
		if err := p.advance(); err != nil {
			return ast.OnSignal{}, err
		}
		for !p.atSymbol("{") {
			if p.tok.Kind == lexer.EOF {
				return ast.OnSignal{}, p.fail("parser.parseOnSignal", "unterminated where-clause")
			}
			where += p.tok.Text + " "
			if err := p.advance(); err != nil {
				return ast.OnSignal{}, err
			}
		}
	}
	body, err := p.parseBalancedBody()
	if err != nil {
		return ast.OnSignal{}, err
	}
	onSig := ast.OnSignal{FreqName: freq, Binding: binding, Where: where, Body: body, Span: ast.Span(sp)}
	scanBody(&onSig, binding)
	return onSig, nil
}

func (p *Parser) parseRule() (ast.RuleDecl, error) {
	sp := p.tok.Span
	if err := p.expectIdent("rule"); err != nil {
		return ast.RuleDecl{}, err
	}
	name, err := p.expectIdentAny()
	if err != nil {
		return ast.RuleDecl{}, err
	}
	if err := p.expectSymbol("("); err != nil {
		return ast.RuleDecl{}, err
	}
	var params []ast.Field
	for !p.atSymbol(")") {
		psp := p.tok.Span
		pname, err := p.expectIdentAny()
		if err != nil {
			return ast.RuleDecl{}, err
		}
		if err := p.expectSymbol(":"); err != nil {
			return ast.RuleDecl{}, err
		}
		ptyp, err := p.parseTypeRef()
		if err != nil {
			return ast.RuleDecl{}, err
		}
		params = append(params, ast.Field{Name: pname, Type: ptyp, Span: ast.Span(psp)})
		if p.atSymbol(",") {
			if err := p.advance(); err != nil {
				return ast.RuleDecl{}, err
			}
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return ast.RuleDecl{}, err
	}
	var ret string
	if p.atSymbol("->") {
		if err := p.advance(); err != nil {
			return ast.RuleDecl{}, err
		}
		ret, err = p.parseTypeRef()
		if err != nil {
			return ast.RuleDecl{}, err
		}
	}
	body, err := p.parseBalancedBody()
	if err != nil {
		return ast.RuleDecl{}, err
	}
	return ast.RuleDecl{Name: name, Params: params, Return: ret, Body: body, Span: ast.Span(sp)}, nil
}

func (p *Parser) parseTopology() (ast.TopologyDecl, error) {
	sp := p.tok.Span
	if err := p.advance(); err != nil { // consume "topology"
		return ast.TopologyDecl{}, err
	}
	topo := ast.TopologyDecl{Span: ast.Span(sp)}
	if err := p.expectSymbol("{"); err != nil {
		return ast.TopologyDecl{}, err
	}
	for !p.atSymbol("}") {
		switch {
		case p.atIdent("fruiting_body"):
			fsp := p.tok.Span
			if err := p.advance(); err != nil {
				return ast.TopologyDecl{}, err
			}
			name, err := p.expectIdentAny()
			if err != nil {
				return ast.TopologyDecl{}, err
			}
			topo.FruitingBodies = append(topo.FruitingBodies, ast.FruitingBodyDecl{Name: name, Span: ast.Span(fsp)})
		case p.atIdent("spawn"):
			ssp := p.tok.Span
			if err := p.advance(); err != nil {
				return ast.TopologyDecl{}, err
			}
			hyphal, err := p.expectIdentAny()
			if err != nil {
				return ast.TopologyDecl{}, err
			}
			if err := p.expectIdent("as"); err != nil {
				return ast.TopologyDecl{}, err
			}
			id, err := p.expectIdentAny()
			if err != nil {
				return ast.TopologyDecl{}, err
			}
			topo.Spawns = append(topo.Spawns, ast.SpawnDecl{Hyphal: hyphal, ID: id, Span: ast.Span(ssp)})
		case p.atIdent("socket"):
			ksp := p.tok.Span
			if err := p.advance(); err != nil {
				return ast.TopologyDecl{}, err
			}
			src, err := p.expectIdentAny()
			if err != nil {
				return ast.TopologyDecl{}, err
			}
			if err := p.expectSymbol("->"); err != nil {
				return ast.TopologyDecl{}, err
			}
			dst, err := p.expectIdentAny()
			if err != nil {
				return ast.TopologyDecl{}, err
			}
			if err := p.expectSymbol("("); err != nil {
				return ast.TopologyDecl{}, err
			}
			if err := p.expectIdent("frequency"); err != nil {
				return ast.TopologyDecl{}, err
			}
			if err := p.expectSymbol(":"); err != nil {
				return ast.TopologyDecl{}, err
			}
			freq, err := p.expectIdentAny()
			if err != nil {
				return ast.TopologyDecl{}, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return ast.TopologyDecl{}, err
			}
			topo.Sockets = append(topo.Sockets, ast.SocketDecl{Source: src, Dest: dst, Freq: freq, Span: ast.Span(ksp)})
		default:
			return ast.TopologyDecl{}, p.fail("parser.parseTopology", "unexpected token '"+p.tok.Text+"' in topology body")
		}
	}
	return topo, p.expectSymbol("}")
}
