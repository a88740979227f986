package textenc

import (
	"reflect"
	"testing"
)

func TestDecodeUTF8WithBOM(t *testing.T) {
	res := Decode([]byte("\xEF\xBB\xBFMatnr;Name\n"))
	if res.Encoding != "utf-8-sig" {
		t.Fatalf("encoding = %q, want utf-8-sig", res.Encoding)
	}
	if res.Text != "Matnr;Name\n" {
		t.Fatalf("BOM must be stripped, got %q", res.Text)
	}
	if res.Degraded {
		t.Fatal("clean decode must not be degraded")
	}
}

func TestDecodePlainUTF8(t *testing.T) {
	res := Decode([]byte("Bébé-Confort"))
	if res.Encoding != "utf-8" || res.Text != "Bébé-Confort" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDecodeWindows1252(t *testing.T) {
	// 0xE9 is é, 0x80 is € in cp1252; the byte sequence is invalid UTF-8.
	res := Decode([]byte{'B', 0xE9, 'b', 0xE9, ' ', 0x80})
	if res.Encoding != "cp1252" {
		t.Fatalf("encoding = %q, want cp1252", res.Encoding)
	}
	if res.Text != "Bébé €" {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestDecodeFallsBackToLatin1(t *testing.T) {
	// 0x81 has no assignment in cp1252, forcing the Latin-1 fallback.
	res := Decode([]byte{'x', 0x81, 'y'})
	if res.Encoding != "latin-1" {
		t.Fatalf("encoding = %q, want latin-1", res.Encoding)
	}
	if res.Degraded {
		t.Fatal("latin-1 decode must not be degraded")
	}
}

func TestDecodeStripsNULPadding(t *testing.T) {
	res := Decode([]byte("12\x0034\x00"))
	if res.Text != "1234" {
		t.Fatalf("text = %q, want 1234", res.Text)
	}
}

func TestLines(t *testing.T) {
	cases := []struct {
		input string
		want  []string
	}{
		{"a\nb\n", []string{"a", "b"}},
		{"a\r\nb\r\n", []string{"a", "b"}},
		{"a\rb", []string{"a", "b"}},
		{"a", []string{"a"}},
		{"", nil},
		{"a\n\nb\n", []string{"a", "", "b"}},
	}
	for _, tc := range cases {
		if got := Lines(tc.input); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Lines(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
