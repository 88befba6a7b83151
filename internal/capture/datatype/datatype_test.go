package datatype

import (
	"strings"
	"testing"

	"github.com/formrelay/capture_layer/internal/errors"
)

func TestTextLength(t *testing.T) {
	r := NewRegistry()

	ok, err := r.Validate(strings.Repeat("a", 255), "Text")
	if err != nil || !ok {
		t.Fatalf("255 ascii chars should validate, got ok=%v err=%v", ok, err)
	}

	ok, _ = r.Validate(strings.Repeat("a", 256), "Text")
	if ok {
		t.Fatalf("256 chars should not validate")
	}

	// Length is measured in codepoints, not bytes.
	ok, _ = r.Validate(strings.Repeat("é", 255), "Text")
	if !ok {
		t.Fatalf("255 multibyte runes should validate")
	}
}

func TestLargeTextUnbounded(t *testing.T) {
	r := NewRegistry()
	ok, err := r.Validate(strings.Repeat("x", 100000), "LargeText")
	if err != nil || !ok {
		t.Fatalf("large text should validate, got ok=%v err=%v", ok, err)
	}
}

func TestEmail(t *testing.T) {
	r := NewRegistry()

	valid := []string{"a@b.com", "first.last@example.co.uk", "user+tag@example.com"}
	for _, v := range valid {
		if ok, _ := r.Validate(v, "Email"); !ok {
			t.Fatalf("expected %q to validate", v)
		}
	}

	invalid := []string{"not-an-email", "@example.com", "a@", "Ann <a@b.com>", "a b@example.com"}
	for _, v := range invalid {
		if ok, _ := r.Validate(v, "Email"); ok {
			t.Fatalf("expected %q to be rejected", v)
		}
	}
}

func TestUnknownTagIsConfigurationError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("Bogus")
	if err == nil {
		t.Fatalf("expected error for unknown tag")
	}
	if !errors.Is(err, errors.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRegisterCustomType(t *testing.T) {
	r := NewRegistry()
	r.Register("Digits", DataType{
		Validate: func(v string) bool {
			for _, c := range v {
				if c < '0' || c > '9' {
					return false
				}
			}
			return true
		},
		Column: "VARCHAR(32) NULL",
	})

	if ok, _ := r.Validate("0123", "Digits"); !ok {
		t.Fatalf("digits should validate")
	}
	if ok, _ := r.Validate("12a", "Digits"); ok {
		t.Fatalf("non-digits should be rejected")
	}
	col, err := r.ColumnFor("Digits")
	if err != nil || col != "VARCHAR(32) NULL" {
		t.Fatalf("unexpected column %q err %v", col, err)
	}
}
