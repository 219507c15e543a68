package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/muflih795/YBG-Database-3/internal/auth"
	"github.com/muflih795/YBG-Database-3/internal/handoff"
	"github.com/muflih795/YBG-Database-3/internal/model"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

var ErrNotConfigured = errors.New("email client not configured")

// Client sends claim handoff notices to the sales assistant inbox through
// Postmark.
type Client struct {
	serverToken string
	fromEmail   string
	toEmail     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

func NewClient(serverToken, fromEmail, toEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		toEmail:     toEmail,
		apiURL:      defaultAPIURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether token, sender and recipient are all set.
func (c *Client) Configured() bool {
	return c.serverToken != "" && c.fromEmail != "" && c.toEmail != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	ReplyTo  string `json:"ReplyTo,omitempty"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// ClaimSent mails the handoff message for a claim. The member's name and
// email come from the request identity in ctx.
func (c *Client) ClaimSent(ctx context.Context, claim model.RewardClaim) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	ac, _ := auth.FromContext(ctx)
	req := handoff.Request{
		Name:    ac.Name,
		Email:   ac.Email,
		Item:    claim.Title,
		Voucher: claim.VoucherCode,
	}
	text := req.Text()

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       c.toEmail,
		ReplyTo:  ac.Email,
		Subject:  fmt.Sprintf("Reward claim %s: %s", claim.VoucherCode, claim.Title),
		TextBody: text,
		HtmlBody: "<pre>" + html.EscapeString(text) + "</pre>",
		Tag:      "reward-claim",
	})
}

func (c *Client) send(ctx context.Context, msg postmarkEmail) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}
	return nil
}
