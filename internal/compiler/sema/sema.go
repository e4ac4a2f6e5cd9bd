// Package sema implements the five semantic checks spec.md §4.8 requires
// before lowering an AST to a NetworkDescriptor. It follows the
// teacher's validate-then-classify shape (plugin/tfd/classifier.go's
// Classify, which returns a typed error the moment an input doesn't match
// a known shape) generalized from "stop at first error" to "collect every
// diagnostic", since a compiler should report more than one mistake per
// run.
package sema

import (
	"fmt"

	"mycelial/internal/compiler/ast"
	"mycelial/internal/errs"
)

// Diagnostic is one semantic-check failure, always errs.KindSemantic.
type Diagnostic = errs.Error

// Check runs all five checks against net and returns every diagnostic
// found. A nil/empty result means net is safe to lower.
func Check(net *ast.Network) []*Diagnostic {
	var diags []*Diagnostic

	freqs := make(map[string]ast.FrequencyDecl, len(net.Frequencies))
	for _, f := range net.Frequencies {
		freqs[f.Name] = f
	}

	hyphae := make(map[string]ast.HyphalDecl, len(net.Hyphae))
	for _, h := range net.Hyphae {
		hyphae[h.Name] = h
	}

	agentIDs := make(map[string]ast.SpawnDecl, len(net.Topology.Spawns))
	for _, s := range net.Topology.Spawns {
		agentIDs[s.ID] = s
	}
	fruiting := make(map[string]bool, len(net.Topology.FruitingBodies))
	for _, fb := range net.Topology.FruitingBodies {
		fruiting[fb.Name] = true
	}

	diags = append(diags, checkFrequencyReferences(net, freqs)...)
	diags = append(diags, checkAgentReferences(net, agentIDs, fruiting)...)
	diags = append(diags, checkSocketCompatibility(net, agentIDs, hyphae)...)
	diags = append(diags, checkStateFieldAccess(net)...)
	diags = append(diags, checkHandlerTypes(net, freqs)...)

	return diags
}

func diag(op string, span ast.Span, format string, args ...any) *Diagnostic {
	return errs.NewAt(op, errs.KindSemantic, errs.Span{Line: span.Line, Col: span.Col, Offset: span.Offset}, fmt.Sprintf(format, args...))
}

// checkFrequencyReferences: every frequency named by a socket, an
// on-signal trigger, or an emit() call must be declared (spec.md §4.8.1).
func checkFrequencyReferences(net *ast.Network, freqs map[string]ast.FrequencyDecl) []*Diagnostic {
	var diags []*Diagnostic
	for _, sock := range net.Topology.Sockets {
		if _, ok := freqs[sock.Freq]; !ok {
			diags = append(diags, diag("sema.checkFrequencyReferences", sock.Span,
				"socket references undeclared frequency %q", sock.Freq))
		}
	}
	for _, h := range net.Hyphae {
		for _, os := range h.OnSignals {
			if _, ok := freqs[os.FreqName]; !ok {
				diags = append(diags, diag("sema.checkFrequencyReferences", os.Span,
					"hyphal %q triggers on undeclared frequency %q", h.Name, os.FreqName))
			}
			for _, ef := range os.EmitFreqs {
				if _, ok := freqs[ef]; !ok {
					diags = append(diags, diag("sema.checkFrequencyReferences", os.Span,
						"hyphal %q emits undeclared frequency %q", h.Name, ef))
				}
			}
		}
	}
	return diags
}

// checkAgentReferences: every agent (spawned id or fruiting body) named by
// a socket must be declared (spec.md §4.8.2).
func checkAgentReferences(net *ast.Network, agentIDs map[string]ast.SpawnDecl, fruiting map[string]bool) []*Diagnostic {
	var diags []*Diagnostic
	resolvable := func(name string) bool {
		_, isAgent := agentIDs[name]
		return isAgent || fruiting[name]
	}
	for _, sock := range net.Topology.Sockets {
		if !resolvable(sock.Source) {
			diags = append(diags, diag("sema.checkAgentReferences", sock.Span,
				"socket source %q is neither a spawned agent nor a fruiting body", sock.Source))
		}
		if !resolvable(sock.Dest) {
			diags = append(diags, diag("sema.checkAgentReferences", sock.Span,
				"socket destination %q is neither a spawned agent nor a fruiting body", sock.Dest))
		}
	}
	return diags
}

// checkSocketCompatibility: a socket's frequency must match the
// destination's declared handler set (when the destination is a spawned
// agent) and the source's emit capabilities (when the source is a spawned
// agent) (spec.md §4.8.3). Fruiting-body endpoints are exempt since they
// have no declared handler set of their own.
func checkSocketCompatibility(net *ast.Network, agentIDs map[string]ast.SpawnDecl, hyphae map[string]ast.HyphalDecl) []*Diagnostic {
	var diags []*Diagnostic
	for _, sock := range net.Topology.Sockets {
		if spawn, ok := agentIDs[sock.Dest]; ok {
			h, ok := hyphae[spawn.Hyphal]
			if !ok {
				continue // undeclared hyphal already reported elsewhere
			}
			if !handlesFrequency(h, sock.Freq) {
				diags = append(diags, diag("sema.checkSocketCompatibility", sock.Span,
					"agent %q (hyphal %q) has no handler for frequency %q delivered by this socket",
					sock.Dest, spawn.Hyphal, sock.Freq))
			}
		}
		if spawn, ok := agentIDs[sock.Source]; ok {
			h, ok := hyphae[spawn.Hyphal]
			if !ok {
				continue
			}
			if !canEmitFrequency(h, sock.Freq) {
				diags = append(diags, diag("sema.checkSocketCompatibility", sock.Span,
					"agent %q (hyphal %q) never emits frequency %q declared by this socket",
					sock.Source, spawn.Hyphal, sock.Freq))
			}
		}
	}
	return diags
}

func handlesFrequency(h ast.HyphalDecl, freq string) bool {
	for _, os := range h.OnSignals {
		if os.FreqName == freq {
			return true
		}
	}
	return false
}

func canEmitFrequency(h ast.HyphalDecl, freq string) bool {
	for _, os := range h.OnSignals {
		for _, ef := range os.EmitFreqs {
			if ef == freq {
				return true
			}
		}
	}
	return false
}

// checkStateFieldAccess: state-field accesses in handlers must refer to
// declared state fields (spec.md §4.8.4). Type compatibility beyond
// existence is left to the host-bound Go handler's own type system, since
// handler bodies are not executed by this implementation (spec.md §4.8 is
// a parse/lowering contract, not an interpreter).
func checkStateFieldAccess(net *ast.Network) []*Diagnostic {
	var diags []*Diagnostic
	for _, h := range net.Hyphae {
		declared := make(map[string]bool, len(h.State))
		for _, f := range h.State {
			declared[f.Name] = true
		}
		for _, os := range h.OnSignals {
			for _, ref := range os.StateRefs {
				if !declared[ref] {
					diags = append(diags, diag("sema.checkStateFieldAccess", os.Span,
						"hyphal %q handler for %q references undeclared state field %q",
						h.Name, os.FreqName, ref))
				}
			}
		}
	}
	return diags
}

// checkHandlerTypes: handler bodies must be well-typed over the payload
// fields, i.e. every field access through the bound signal variable must
// name a field the triggering frequency actually declares (spec.md
// §4.8.5).
func checkHandlerTypes(net *ast.Network, freqs map[string]ast.FrequencyDecl) []*Diagnostic {
	var diags []*Diagnostic
	for _, h := range net.Hyphae {
		for _, os := range h.OnSignals {
			fd, ok := freqs[os.FreqName]
			if !ok {
				continue // already reported by checkFrequencyReferences
			}
			declared := make(map[string]bool, len(fd.Fields))
			for _, f := range fd.Fields {
				declared[f.Name] = true
			}
			for _, ref := range os.PayloadRefs {
				if !declared[ref] {
					diags = append(diags, diag("sema.checkHandlerTypes", os.Span,
						"hyphal %q handler for %q accesses undeclared payload field %q.%q",
						h.Name, os.FreqName, os.Binding, ref))
				}
			}
		}
	}
	return diags
}
