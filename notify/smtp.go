package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
)

var receiptTmpl = template.Must(template.New("receipt").Parse(
	`<h2>Olá, {{.Name}}!</h2>` +
		`<p>Obrigado pela sua compra. Aqui estão os links dos seus arquivos digitais:</p>` +
		`<ul>{{range .Items}}<li><strong>{{.Title}}</strong><br/>` +
		`{{if .FileURL}}<a href="{{.FileURL}}?fl_attachment">📥 Baixar arquivo</a>{{end}}</li>{{end}}</ul>` +
		`<p>Qualquer dúvida, basta responder este e-mail.</p>`))

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier mails the receipt with download links and a PDF copy.
type SMTPNotifier struct {
	Host     string
	Port     string
	User     string
	Pass     string
	FromName string

	send SendFunc
}

func NewSMTPNotifier(host, port, user, pass, fromName string) *SMTPNotifier {
	return &SMTPNotifier{
		Host:     host,
		Port:     port,
		User:     user,
		Pass:     pass,
		FromName: fromName,
		send:     smtp.SendMail,
	}
}

func (n *SMTPNotifier) SendReceipt(ctx context.Context, r Receipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := n.Message(r)
	if err != nil {
		return err
	}
	auth := smtp.PlainAuth("", n.User, n.Pass, n.Host)
	if err := n.send(n.Host+":"+n.Port, auth, n.User, []string{r.Email}, msg); err != nil {
		return fmt.Errorf("send receipt for order %s: %w", r.OrderID, err)
	}
	log.Printf("[Notify] receipt for order %s sent to %s", r.OrderID, r.Email)
	return nil
}

// Message builds the full MIME message: an HTML body and the PDF receipt.
func (n *SMTPNotifier) Message(r Receipt) ([]byte, error) {
	var html bytes.Buffer
	if err := receiptTmpl.Execute(&html, r); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	pdf, err := ReceiptPDF(r)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=UTF-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	writeBase64(htmlPart, html.Bytes())

	filename := "pedido-" + r.OrderID + ".pdf"
	pdfPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"application/pdf; name=\"" + filename + "\""},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {"attachment; filename=\"" + filename + "\""},
	})
	if err != nil {
		return nil, err
	}
	writeBase64(pdfPart, pdf)
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	from := mime.QEncoding.Encode("UTF-8", n.FromName)
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", from, n.User)
	fmt.Fprintf(&msg, "To: %s\r\n", r.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", "Seu pedido #"+r.OrderID+" está pronto!"))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// writeBase64 wraps encoded lines at 76 characters.
func writeBase64(w io.Writer, data []byte) {
	enc := base64.StdEncoding.EncodeToString(data)
	var sb strings.Builder
	for len(enc) > 76 {
		sb.WriteString(enc[:76])
		sb.WriteString("\r\n")
		enc = enc[76:]
	}
	sb.WriteString(enc)
	sb.WriteString("\r\n")
	_, _ = w.Write([]byte(sb.String()))
}
