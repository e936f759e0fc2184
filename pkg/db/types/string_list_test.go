package dbtypes

import "testing"

func TestStringListScanFormats(t *testing.T) {
	var list StringList
	if err := list.Scan(`["linen","cotton"]`); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if len(list) != 2 || list[0] != "linen" || list[1] != "cotton" {
		t.Fatalf("unexpected list %v", list)
	}

	if err := list.Scan([]byte(`[]`)); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %v", list)
	}

	if err := list.Scan(nil); err != nil || list == nil {
		t.Fatalf("nil scan should produce empty list, got %v err=%v", list, err)
	}

	if err := list.Scan(42); err == nil {
		t.Fatal("expected unsupported type error")
	}
}

func TestStringListValuePreservesOrder(t *testing.T) {
	v, err := StringList{"b", "a"}.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if v != `["b","a"]` {
		t.Fatalf("unexpected value %v", v)
	}

	var nilList StringList
	if v, _ := nilList.Value(); v != "[]" {
		t.Fatalf("nil list should encode as [], got %v", v)
	}
}

func TestJSONRoundTripAndValidation(t *testing.T) {
	doc, err := MarshalJSONValue(map[string]any{"errors": []string{"title is required"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	v, err := doc.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var scanned JSON
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if string(scanned) != string(doc) {
		t.Fatalf("round trip mismatch %s vs %s", scanned, doc)
	}

	if _, err := JSON(`{"broken"`).Value(); err == nil {
		t.Fatal("expected invalid document error")
	}
	if v, err := JSON(nil).Value(); err != nil || v != nil {
		t.Fatalf("empty document should be NULL, got %v err=%v", v, err)
	}
}
