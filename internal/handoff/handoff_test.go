package handoff

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestRequestText(t *testing.T) {
	r := Request{Name: "Sari", Item: "Mini City Wallet", Voucher: "ABCD234XYZ"}
	text := r.Text()

	for _, want := range []string{
		"Nama   : Sari\n",
		"Email  : -\n",
		"Item   : Mini City Wallet\n",
		"Kode   : ABCD234XYZ\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

func TestLink(t *testing.T) {
	l, err := NewLinker("+62 811-2655-197")
	if err != nil {
		t.Fatalf("NewLinker: %v", err)
	}

	r := Request{Name: "Sari W", Email: "sari@example.com", Item: "Voucher & Co", Voucher: "ABCD234XYZ"}
	link := l.Link(r)

	if !strings.HasPrefix(link, "https://wa.me/628112655197?text=") {
		t.Fatalf("link = %q", link)
	}
	if strings.Contains(link, "+") {
		t.Errorf("link should encode spaces as %%20: %q", link)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if got := u.Query().Get("text"); got != r.Text() {
		t.Errorf("decoded text = %q, want %q", got, r.Text())
	}
}

func TestNewLinkerRejectsLetters(t *testing.T) {
	for _, n := range []string{"", "  ", "62abc"} {
		if _, err := NewLinker(n); !errors.Is(err, ErrInvalidNumber) {
			t.Errorf("NewLinker(%q) err = %v, want ErrInvalidNumber", n, err)
		}
	}
}

func TestNilLinker(t *testing.T) {
	var l *Linker
	if got := l.Link(Request{Item: "x"}); got != "" {
		t.Errorf("nil Link = %q, want empty", got)
	}
}
