package sinks

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWriteAndReadAllRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observe.jsonl")
	s, err := NewObservationFileSink(path)
	if err != nil {
		t.Fatalf("NewObservationFileSink: %v", err)
	}

	want := []Observation{
		{FruitingBody: "fruit_out", FreqName: "pong", Payload: []byte{1, 2}, CapturedAt: time.Unix(1000, 0).UTC()},
		{FruitingBody: "fruit_out", FreqName: "pong", Payload: []byte{3}, CapturedAt: time.Unix(1001, 0).UTC()},
	}
	if err := s.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ReadAll = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i].FruitingBody != want[i].FruitingBody || got[i].FreqName != want[i].FreqName || string(got[i].Payload) != string(want[i].Payload) {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestWriteEmptyIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observe.jsonl")
	s, err := NewObservationFileSink(path)
	if err != nil {
		t.Fatalf("NewObservationFileSink: %v", err)
	}
	defer s.Close()
	if err := s.Write(nil); err != nil {
		t.Fatalf("Write(nil): %v", err)
	}
}

func TestReadAllMissingFile(t *testing.T) {
	if _, err := ReadAll(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Fatal("expected error reading a missing file")
	}
}

func TestAppendsAcrossMultipleSinkOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observe.jsonl")
	s1, err := NewObservationFileSink(path)
	if err != nil {
		t.Fatalf("NewObservationFileSink: %v", err)
	}
	if err := s1.Write([]Observation{{FruitingBody: "a", FreqName: "f", Payload: []byte{1}}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := NewObservationFileSink(path)
	if err != nil {
		t.Fatalf("NewObservationFileSink (reopen): %v", err)
	}
	if err := s2.Write([]Observation{{FruitingBody: "b", FreqName: "g", Payload: []byte{2}}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadAll = %+v, want 2 records", got)
	}
}
