package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lojinha.com/app/internal/modules/checkout"
	"lojinha.com/app/internal/modules/orders"
)

type Sender interface {
	SendEmail(to string, toName string, subject string, htmlBody string, textBody string) error
}

// Notifier implements the payment-confirmation collaborator over a Sender.
type Notifier struct {
	sender Sender
}

func NewNotifier(s Sender) *Notifier { return &Notifier{sender: s} }

func (n *Notifier) PaymentConfirmed(ctx context.Context, ord orders.Order, items []orders.OrderItem, payerEmail string) error {
	_ = ctx
	return SendOrderConfirmation(n.sender, payerEmail, ord, items)
}

func SendOrderConfirmation(svc Sender, to string, ord orders.Order, items []orders.OrderItem) error {
	subject := "Pagamento confirmado - Pedido " + ord.OrderNumber

	var lines []string
	var htmlRows []string
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("- %dx %s (%s)", it.Quantity, it.Title, checkout.FormatCents(it.LineTotalCents)))
		htmlRows = append(htmlRows, fmt.Sprintf("<tr><td>%dx %s</td><td>%s</td></tr>", it.Quantity, it.Title, checkout.FormatCents(it.LineTotalCents)))
	}

	date := time.Now().Format("02/01/2006")
	if ord.PaidAt != nil {
		date = ord.PaidAt.Format("02/01/2006")
	}
	total := checkout.FormatCents(ord.FinalCents)

	textBody := "Olá,\n\nRecebemos o pagamento do seu pedido " + ord.OrderNumber + " em " + date + ".\n\n" +
		strings.Join(lines, "\n") + "\n\nTotal: " + total + "\n\nObrigado!\nLojinha"

	htmlBody := `
<html>
  <body style="font-family: sans-serif;">
    <h2>Pagamento confirmado</h2>
    <p>Recebemos o pagamento do seu pedido.</p>
    <p><strong>Pedido:</strong> ` + ord.OrderNumber + `</p>
    <p><strong>Data:</strong> ` + date + `</p>
    <table>` + strings.Join(htmlRows, "") + `</table>
    <p><strong>Total:</strong> ` + total + `</p>
    <p>Obrigado!</p>
    <p>Equipe Lojinha</p>
  </body>
</html>
`

	return svc.SendEmail(to, "", subject, htmlBody, textBody)
}
