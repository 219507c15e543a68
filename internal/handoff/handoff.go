// Package handoff builds the WhatsApp message a member sends to the sales
// assistant to collect a redeemed reward.
package handoff

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidNumber = errors.New("whatsapp number must be digits only, country code first")

// Request is what the sales assistant needs to fulfil a claim.
type Request struct {
	Name    string
	Email   string
	Item    string
	Voucher string
}

// Text renders the chat message. Missing contact fields show as "-".
func (r Request) Text() string {
	var b strings.Builder
	b.WriteString("Halo kak, saya mau redeem reward:\n")
	fmt.Fprintf(&b, "Nama   : %s\n", orDash(r.Name))
	fmt.Fprintf(&b, "Email  : %s\n", orDash(r.Email))
	fmt.Fprintf(&b, "Item   : %s\n", r.Item)
	fmt.Fprintf(&b, "Kode   : %s\n\n", r.Voucher)
	b.WriteString("Mohon dibantu ya.")
	return b.String()
}

func orDash(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "-"
	}
	return s
}

// Linker produces wa.me deep links for one sales assistant number.
type Linker struct {
	number string
}

// NewLinker accepts numbers like "628112655197". A leading "+" and any
// spaces or dashes are stripped.
func NewLinker(number string) (*Linker, error) {
	n := strings.NewReplacer("+", "", " ", "", "-", "").Replace(strings.TrimSpace(number))
	if n == "" {
		return nil, ErrInvalidNumber
	}
	for _, c := range n {
		if c < '0' || c > '9' {
			return nil, ErrInvalidNumber
		}
	}
	return &Linker{number: n}, nil
}

// Link returns the deep link with the message prefilled. A nil Linker
// returns "" so callers can run without a configured number.
func (l *Linker) Link(r Request) string {
	if l == nil {
		return ""
	}
	text := strings.ReplaceAll(url.QueryEscape(r.Text()), "+", "%20")
	return "https://wa.me/" + l.number + "?text=" + text
}
