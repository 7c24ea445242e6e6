package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// brevoSendRequest matches Brevo API v3 send transactional email body.
type brevoSendRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	ReplyTo     *brevoContact  `json:"replyTo,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// BrevoClient sends emails via Brevo (Sendinblue) API. Env: SENDINBLUE_API_KEY, MAIL_FROM.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	// Locale formats amounts; defaults to es-CO.
	Locale   language.Tag
	Endpoint string
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "ventas@siglo.co"
}

func (c *BrevoClient) printer() *message.Printer {
	if c.Locale == language.Und {
		return message.NewPrinter(language.MustParse("es-CO"))
	}
	return message.NewPrinter(c.Locale)
}

func (c *BrevoClient) send(ctx context.Context, to brevoContact, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := brevoSendRequest{
		Sender:      brevoContact{Email: c.from(), Name: "Siglo Lotes"},
		To:          []brevoContact{to},
		Subject:     subject,
		HTMLContent: html,
		ReplyTo:     &brevoContact{Email: c.from(), Name: "Siglo Lotes Ventas"},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = brevoAPI
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// SendPaymentReceipt emails the client a confirmation of a registered payment.
func (c *BrevoClient) SendPaymentReceipt(ctx context.Context, r PaymentReceipt) error {
	if c.APIKey == "" || r.ClientEmail == "" {
		return nil
	}
	subject := fmt.Sprintf("Payment received for purchase #%d", r.PurchaseID)
	return c.send(ctx, brevoContact{Email: r.ClientEmail, Name: r.ClientName},
		subject, EmailLayout(receiptContent(c.printer(), r)))
}

// FormatAmount renders amount with the locale's grouping and two decimals.
func FormatAmount(p *message.Printer, amount decimal.Decimal) string {
	return p.Sprintf("$%.2f", amount.Round(2).InexactFloat64())
}

func receiptContent(p *message.Printer, r PaymentReceipt) string {
	name := r.ClientName
	if name == "" {
		name = "client"
	}
	lots := "-"
	if len(r.LotCodes) > 0 {
		lots = EscapeHTML(strings.Join(r.LotCodes, ", "))
	}
	return fmt.Sprintf(`
    <h1>Payment received</h1>
    <p>Hi %s,</p>
    <p>We registered a payment of <strong>%s</strong> on %s for purchase <strong>#%d</strong> (lots: %s).</p>
    <p>Outstanding balance: <strong>%s</strong></p>
    <p style="margin-top:20px;font-size:14px;color:#666;">
      Lot statuses are updated once our team validates the payment.
    </p>
`, EscapeHTML(name), FormatAmount(p, r.Amount), r.PaymentDate.Format("2006-01-02"),
		r.PurchaseID, lots, FormatAmount(p, r.Outstanding))
}
