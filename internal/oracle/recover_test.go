package oracle

import "testing"

type claimStub struct {
	CellID string   `json:"cell_id"`
	Found  bool     `json:"found"`
	Value  *float64 `json:"claimed_value"`
}

func TestStripWrapping(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`[{"a":1}]`, `[{"a":1}]`},
		{"  \n[1,2]\n  ", "[1,2]"},
	}
	for _, tt := range tests {
		if got := StripWrapping(tt.in); got != tt.want {
			t.Errorf("StripWrapping(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeArray_WellFormed(t *testing.T) {
	data := []byte(`[{"cell_id":"1_0","found":true,"claimed_value":5},{"cell_id":"1_1","found":false,"claimed_value":null}]`)
	out, err := DecodeArray[claimStub](data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(out))
	}
	if out[0].CellID != "1_0" || out[0].Value == nil || *out[0].Value != 5 {
		t.Errorf("first element decoded wrong: %+v", out[0])
	}
	if out[1].Value != nil {
		t.Errorf("expected nil value for null, got %v", *out[1].Value)
	}
}

func TestDecodeArray_Fenced(t *testing.T) {
	data := []byte("```json\n[{\"cell_id\":\"2_0\",\"found\":true,\"claimed_value\":7}]\n```")
	out, err := DecodeArray[claimStub](data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].CellID != "2_0" {
		t.Errorf("fenced array decoded wrong: %+v", out)
	}
}

func TestDecodeArray_TruncatedSalvagesCompleteElements(t *testing.T) {
	// Response cut off mid-element: the two complete elements survive
	// unmodified, the broken tail is dropped.
	data := []byte(`[{"cell_id":"1_0","found":true,"claimed_value":100},{"cell_id":"1_1","found":true,"claimed_value":200},{"cell_id":"1_2","fo`)
	out, err := DecodeArray[claimStub](data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 salvaged elements, got %d", len(out))
	}
	if *out[0].Value != 100 || *out[1].Value != 200 {
		t.Errorf("salvaged values wrong: %v, %v", *out[0].Value, *out[1].Value)
	}
}

func TestDecodeArray_BracesInsideStrings(t *testing.T) {
	data := []byte(`[{"cell_id":"a{b}c","found":true,"claimed_value":1},{"cell_id":"x","fo`)
	out, err := DecodeArray[claimStub](data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].CellID != "a{b}c" {
		t.Errorf("expected braces in strings to be opaque, got %+v", out)
	}
}

func TestDecodeArray_RepairsLooseJSON(t *testing.T) {
	// Single-quoted keys: not a truncation, handled by the repair pass.
	data := []byte(`[{'cell_id':'1_0','found':true,'claimed_value':5}]`)
	out, err := DecodeArray[claimStub](data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 element after repair, got %d", len(out))
	}
}

func TestDecodeArray_Hopeless(t *testing.T) {
	if _, err := DecodeArray[claimStub]([]byte("I could not find any figures.")); err == nil {
		t.Fatal("expected error for prose response")
	}
}

func TestDecodeObject(t *testing.T) {
	type resp struct {
		Mappings []struct {
			SourceKey string `json:"source_key"`
		} `json:"mappings"`
	}
	out, err := DecodeObject[resp]([]byte("```json\n{\"mappings\":[{\"source_key\":\"15\"}]}\n```"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Mappings) != 1 || out.Mappings[0].SourceKey != "15" {
		t.Errorf("object decoded wrong: %+v", out)
	}
}
