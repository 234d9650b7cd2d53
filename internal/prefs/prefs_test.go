package prefs

import "testing"

type record struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Ratio float64 `json:"ratio"`
}

func TestRecordRoundTrip(t *testing.T) {
	p := NewInMemory()
	in := record{Name: "sample", Count: 3, Ratio: 1.5}
	p.SetRecord("k", in)

	var out record
	if !p.GetRecord("k", &out) {
		t.Fatal("stored record not found")
	}
	if out != in {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestGetRecordMissing(t *testing.T) {
	p := NewInMemory()
	var out record
	if p.GetRecord("absent", &out) {
		t.Error("missing key reported present")
	}
}

func TestDelete(t *testing.T) {
	p := NewInMemory()
	p.SetRecord("k", record{Name: "x"})
	p.Delete("k")
	var out record
	if p.GetRecord("k", &out) {
		t.Error("deleted key still present")
	}
}

func TestScalarHelpers(t *testing.T) {
	p := NewInMemory()

	if got := p.Float("f", 2.5); got != 2.5 {
		t.Errorf("missing float fallback = %v", got)
	}
	p.SetFloat("f", 7.25)
	if got := p.Float("f", 0); got != 7.25 {
		t.Errorf("float = %v", got)
	}

	p.SetString("s", "hello")
	if got := p.String("s"); got != "hello" {
		t.Errorf("string = %q", got)
	}

	if !p.Bool("b", true) {
		t.Error("missing bool fallback lost")
	}
	p.SetBool("b", false)
	if p.Bool("b", true) {
		t.Error("stored false not returned")
	}
}

func TestInMemorySaveIsNoOp(t *testing.T) {
	p := NewInMemory()
	p.SetRecord("k", record{Name: "x"})
	if err := p.Save(); err != nil {
		t.Errorf("in-memory save errored: %v", err)
	}
}
