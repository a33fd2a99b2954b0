package keyenc

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		userKey string
		sel     string
		tag     Tag
	}{
		{"foo", "1", TagKey},
		{"with:colons:inside", "42", TagMap},
		{"", "100", TagVector},
	}
	for _, tt := range tests {
		phys := Encode([]byte(tt.userKey), tt.sel, tt.tag)
		d, err := Decode(phys)
		if err != nil {
			t.Fatalf("Decode(%q): %v", phys, err)
		}
		if !bytes.Equal(d.UserKey, []byte(tt.userKey)) {
			t.Errorf("UserKey = %q, want %q", d.UserKey, tt.userKey)
		}
		if d.Select != tt.sel {
			t.Errorf("Select = %q, want %q", d.Select, tt.sel)
		}
		if d.Tag != tt.tag {
			t.Errorf("Tag = %q, want %q", d.Tag, tt.tag)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte("onlyonefield")); err == nil {
		t.Error("expected error for key with too few fields")
	}
	if _, err := Decode([]byte("zz:1:KEY")); err == nil {
		t.Error("expected error for non-hex user-key field")
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*", "anything", true},
		{"foo", "foo", true},
		{"foo", "bar", false},
		{"f?o", "foo", true},
		{"f?o", "fooo", false},
		{"k*", "key1", true},
		{"k*", "nope", false},
		{"*end", "prefixend", true},
		{"a*b*c", "aXXbYYc", true},
		{"a*b*c", "aXXbYY", false},
		{"", "", true},
		{"", "x", false},
	}
	for _, tt := range tests {
		if got := Match(tt.pattern, []byte(tt.name)); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestMatchesPositionalFields(t *testing.T) {
	phys := Encode([]byte("key1"), "1", TagKey)
	d, err := Decode(phys)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !Matches(d, "1", TagKey, "k*") {
		t.Error("expected Matches to succeed on matching select/tag/pattern")
	}
	if Matches(d, "2", TagKey, "k*") {
		t.Error("expected Matches to fail on mismatched select")
	}
	if Matches(d, "1", TagMap, "k*") {
		t.Error("expected Matches to fail on mismatched tag")
	}
}
