// Package lower assembles a checked AST into an
// internal/descriptor.NetworkDescriptor, following the teacher's
// assembly-façade idiom (plugin/tfd/pipeline.go's NewPipeline, which wires
// sub-components from a validated options struct) generalized here to
// "wire a descriptor's sections from a validated AST."
package lower

import (
	"strings"

	"mycelial/internal/compiler/ast"
	"mycelial/internal/compiler/sema"
	"mycelial/internal/descriptor"
	"mycelial/internal/errs"
)

// Lower runs semantic checks over net and, if it passes, assembles a
// NetworkDescriptor. On semantic failure it returns the diagnostics and a
// nil descriptor; per spec.md §7's propagation policy these are meant to
// surface to the user and abort compilation.
func Lower(net *ast.Network) (*descriptor.NetworkDescriptor, []*errs.Error) {
	if diags := sema.Check(net); len(diags) > 0 {
		return nil, diags
	}

	d := &descriptor.NetworkDescriptor{NetworkName: net.Name}

	for i, f := range net.Frequencies {
		spec := descriptor.FrequencySpec{ID: uint32(i + 1), Name: f.Name}
		for _, fl := range f.Fields {
			spec.Fields = append(spec.Fields, descriptor.FrequencyField{Name: fl.Name, Type: fl.Type})
		}
		d.Frequencies = append(d.Frequencies, spec)
	}

	hyphae := make(map[string]ast.HyphalDecl, len(net.Hyphae))
	for _, h := range net.Hyphae {
		hyphae[h.Name] = h
	}

	var code strings.Builder
	for id, spawn := range net.Topology.Spawns {
		h := hyphae[spawn.Hyphal]
		agent := descriptor.AgentSpec{
			ID:         uint32(id + 1),
			Name:       spawn.ID,
			HyphalName: spawn.Hyphal,
		}
		for _, f := range h.State {
			agent.StateFields = append(agent.StateFields, descriptor.FrequencyField{Name: f.Name, Type: f.Type})
		}
		for _, os := range h.OnSignals {
			agent.Handlers = append(agent.Handlers, descriptor.HandlerBinding{
				FrequencyName: os.FreqName,
				GuardExpr:     os.Where,
				Body:          os.Body,
			})
			code.WriteString(os.Body)
			code.WriteByte('\n')
		}
		if h.OnRest != "" {
			code.WriteString(h.OnRest)
			code.WriteByte('\n')
		}
		if h.OnCycle != "" {
			code.WriteString(h.OnCycle)
			code.WriteByte('\n')
		}
		for _, rule := range h.Rules {
			code.WriteString(rule.Body)
			code.WriteByte('\n')
		}
		d.Agents = append(d.Agents, agent)
	}

	fruiting := make(map[string]bool, len(net.Topology.FruitingBodies))
	for _, fb := range net.Topology.FruitingBodies {
		fruiting[fb.Name] = true
	}

	for _, sock := range net.Topology.Sockets {
		d.Sockets = append(d.Sockets, descriptor.SocketSpec{Source: sock.Source, Dest: sock.Dest, Freq: sock.Freq})
		if fruiting[sock.Source] {
			d.FruitingBodies = append(d.FruitingBodies, descriptor.FruitingBodySpec{
				Name: sock.Source, FreqName: sock.Freq, Direction: "inject",
			})
		}
		if fruiting[sock.Dest] {
			d.FruitingBodies = append(d.FruitingBodies, descriptor.FruitingBodySpec{
				Name: sock.Dest, FreqName: sock.Freq, Direction: "observe",
			})
		}
	}

	d.Code = []byte(code.String())
	return d, nil
}
