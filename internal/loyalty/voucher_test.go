package loyalty

import (
	"strings"
	"testing"
)

func TestNewVoucherCodeAlphabet(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := NewVoucherCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != VoucherLength {
			t.Fatalf("code %q length = %d, want %d", code, len(code), VoucherLength)
		}
		for _, c := range code {
			if !strings.ContainsRune(VoucherAlphabet, c) {
				t.Fatalf("code %q contains %q outside the alphabet", code, c)
			}
		}
		seen[code] = true
	}
	if len(seen) < 199 {
		t.Errorf("only %d distinct codes out of 200", len(seen))
	}
}

func TestVoucherAlphabetSkipsLookalikes(t *testing.T) {
	for _, c := range "IO01" {
		if strings.ContainsRune(VoucherAlphabet, c) {
			t.Errorf("alphabet contains ambiguous %q", c)
		}
	}
}
