package cart

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestIdentityKeyIgnoresInsertionOrder(t *testing.T) {
	var a, b Customizations
	if err := json.Unmarshal([]byte(`{"size": {"id": "L"}, "toppings": [{"id": "cheese"}, {"id": "onion"}]}`), &a); err != nil {
		t.Fatalf("decode a: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"toppings": [{"id": "onion"}, {"id": "cheese"}], "size": {"id": "L"}}`), &b); err != nil {
		t.Fatalf("decode b: %v", err)
	}
	if IdentityKey("p1", a) != IdentityKey("p1", b) {
		t.Fatalf("expected equal keys:\n%s\n%s", IdentityKey("p1", a), IdentityKey("p1", b))
	}
}

func TestIdentityKeyDistinguishesSelections(t *testing.T) {
	small := Customizations{"size": {Options: []Option{{ID: "S"}}}}
	large := Customizations{"size": {Options: []Option{{ID: "L"}}}}
	noted := Customizations{"instructions": {Text: "no onions"}}

	if IdentityKey("p1", small) == IdentityKey("p1", large) {
		t.Fatal("different options must not share identity")
	}
	if IdentityKey("p1", small) == IdentityKey("p2", small) {
		t.Fatal("different products must not share identity")
	}
	if IdentityKey("p1", nil) == IdentityKey("p1", noted) {
		t.Fatal("instructions are part of identity")
	}
}

func TestIdentityKeyNormalisesEmptyAndDuplicates(t *testing.T) {
	empty := Customizations{"toppings": {Multi: true}, "instructions": {Text: "  "}}
	if IdentityKey("p1", empty) != IdentityKey("p1", nil) {
		t.Fatal("empty groups should not affect identity")
	}
	dup := Customizations{"toppings": {Multi: true, Options: []Option{{ID: "a"}, {ID: "a"}, {ID: "b"}}}}
	once := Customizations{"toppings": {Multi: true, Options: []Option{{ID: "b"}, {ID: "a"}}}}
	if IdentityKey("p1", dup) != IdentityKey("p1", once) {
		t.Fatal("duplicate options should collapse")
	}
}

func TestIdentityKeyIgnoresDisplayFields(t *testing.T) {
	plain := Customizations{"size": {Options: []Option{{ID: "L"}}}}
	priced := Customizations{"size": {Options: []Option{{ID: "L", Name: "Large", PriceModifier: decimal.NewFromInt(200)}}}}
	if IdentityKey("p1", plain) != IdentityKey("p1", priced) {
		t.Fatal("names and modifiers are not identity")
	}
}

func TestSelectionDecodeShapes(t *testing.T) {
	var c Customizations
	raw := `{"size": {"id": "L", "name": "Large", "price_modifier": 250.5}, "toppings": ["a", {"id": "b", "price_modifier": "100"}], "instructions": "extra hot", "sides": null}`
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sel := c["size"]; sel.Multi || len(sel.Options) != 1 || sel.Options[0].Name != "Large" {
		t.Fatalf("unexpected single selection %+v", sel)
	}
	if sel := c["toppings"]; !sel.Multi || len(sel.Options) != 2 || sel.Options[0].ID != "a" {
		t.Fatalf("unexpected multi selection %+v", sel)
	}
	if c["instructions"].Text != "extra hot" {
		t.Fatalf("unexpected text %+v", c["instructions"])
	}
	if got := c.PriceModifier(); !got.Equal(decimal.RequireFromString("350.5")) {
		t.Fatalf("expected modifier 350.5, got %s", got)
	}
}

func TestSelectionDecodeRejectsBadValues(t *testing.T) {
	for _, raw := range []string{`{"size": 12}`, `{"size": {"name": "no id"}}`, `{"toppings": [""]}`} {
		var c Customizations
		if err := json.Unmarshal([]byte(raw), &c); err == nil {
			t.Errorf("expected error for %s", raw)
		}
	}
}

func TestSelectionEncodeRoundTrip(t *testing.T) {
	in := Customizations{
		"size":         {Options: []Option{{ID: "L"}}},
		"toppings":     {Multi: true, Options: []Option{{ID: "a"}, {ID: "b"}}},
		"instructions": {Text: "no salt"},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out Customizations
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if IdentityKey("p", in) != IdentityKey("p", out) {
		t.Fatalf("round trip changed identity: %s", data)
	}
	if !out["toppings"].Multi || out["size"].Multi {
		t.Fatalf("shape lost in round trip: %s", data)
	}
}

func TestCloneIsDeep(t *testing.T) {
	in := Customizations{"toppings": {Multi: true, Options: []Option{{ID: "a"}}}}
	out := in.Clone()
	out["toppings"].Options[0].ID = "changed"
	if in["toppings"].Options[0].ID != "a" {
		t.Fatal("clone shares option slices")
	}
}
