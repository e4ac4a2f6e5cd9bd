package parser

import "testing"

const echoSource = `
network Spores {
    frequencies {
        ping { value: u32 }
        pong { value: u32 }
    }
    hyphae {
        hyphal echoer {
            state { processed: u32 }
            on signal(ping, s) {
                state.processed = 1
                emit(pong, s.value)
            }
        }
    }
    topology {
        fruiting_body fruit_in
        fruiting_body fruit_out
        spawn echoer as E
        socket fruit_in -> E (frequency: ping)
        socket E -> fruit_out (frequency: pong)
    }
}
`

func TestParseEchoNetwork(t *testing.T) {
	p, err := New(echoSource)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	net, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if net.Name != "Spores" {
		t.Fatalf("Name = %q, want Spores", net.Name)
	}
	if len(net.Frequencies) != 2 {
		t.Fatalf("Frequencies = %+v", net.Frequencies)
	}
	if len(net.Hyphae) != 1 || net.Hyphae[0].Name != "echoer" {
		t.Fatalf("Hyphae = %+v", net.Hyphae)
	}
	onSig := net.Hyphae[0].OnSignals[0]
	if onSig.FreqName != "ping" || onSig.Binding != "s" {
		t.Fatalf("OnSignal = %+v", onSig)
	}
	if len(onSig.EmitFreqs) != 1 || onSig.EmitFreqs[0] != "pong" {
		t.Fatalf("EmitFreqs = %v", onSig.EmitFreqs)
	}
	if len(onSig.StateRefs) != 1 || onSig.StateRefs[0] != "processed" {
		t.Fatalf("StateRefs = %v", onSig.StateRefs)
	}
	if len(onSig.PayloadRefs) != 1 || onSig.PayloadRefs[0] != "value" {
		t.Fatalf("PayloadRefs = %v", onSig.PayloadRefs)
	}
	if len(net.Topology.Spawns) != 1 || net.Topology.Spawns[0].ID != "E" {
		t.Fatalf("Spawns = %+v", net.Topology.Spawns)
	}
	if len(net.Topology.Sockets) != 2 {
		t.Fatalf("Sockets = %+v", net.Topology.Sockets)
	}
}

func TestParseRuleWithGuardAndReturn(t *testing.T) {
	src := `
network R {
    frequencies { step { value: u32 } }
    hyphae {
        hyphal voter {
            state { votes: u32 }
            on signal(step, s) where s.value > 10 {
                state.votes = 1
            }
            rule threshold(n: u32) -> bool {
                return n >= 2
            }
        }
    }
    topology {
        fruiting_body in
        spawn voter as V
        socket in -> V (frequency: step)
    }
}
`
	p, err := New(src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	net, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	h := net.Hyphae[0]
	if h.OnSignals[0].Where == "" {
		t.Fatal("expected non-empty where-clause")
	}
	if len(h.Rules) != 1 || h.Rules[0].Name != "threshold" {
		t.Fatalf("Rules = %+v", h.Rules)
	}
	if h.Rules[0].Return != "bool" {
		t.Fatalf("Return = %q, want bool", h.Rules[0].Return)
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	p, err := New("network { }")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Parse(); err == nil {
		t.Fatal("Parse should reject a network with no name")
	}
}

func TestParseCompositeTypes(t *testing.T) {
	src := `
network T {
    frequencies {
        batch { items: vec<u32>, tags: map<string,u32> }
    }
    hyphae {}
    topology {}
}
`
	p, err := New(src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	net, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fields := net.Frequencies[0].Fields
	if fields[0].Type != "vec<u32>" {
		t.Fatalf("fields[0].Type = %q", fields[0].Type)
	}
	if fields[1].Type != "map<string,u32>" {
		t.Fatalf("fields[1].Type = %q", fields[1].Type)
	}
}
