package notify

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// ReceiptPDF renders a one-page receipt with a QR code carrying the order id.
func ReceiptPDF(r Receipt) ([]byte, error) {
	png, err := qrcode.Encode("order:"+r.OrderID, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("generate QR code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, tr("Talentostore"))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, tr("Pedido #"+r.OrderID))
	pdf.Ln(8)
	pdf.Cell(0, 8, tr("Cliente: "+r.Name))
	pdf.Ln(8)
	pdf.Cell(0, 8, tr("E-mail: "+r.Email))
	pdf.Ln(8)
	if !r.PaidAt.IsZero() {
		pdf.Cell(0, 8, tr("Pago em: "+r.PaidAt.Format("02/01/2006 15:04")))
		pdf.Ln(8)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("qr", 150, 20, 40, 40, false, opts, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(110, 8, tr("Produto"), "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, tr("Qtd"), "B", 0, "C", false, 0, "")
	pdf.CellFormat(40, 8, tr("Subtotal"), "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for _, it := range r.Items {
		pdf.CellFormat(110, 8, tr(it.Title), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 8, fmt.Sprint(it.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(40, 8, it.Price, "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(130, 10, "Total", "T", 0, "L", false, 0, "")
	pdf.CellFormat(40, 10, r.Currency+" "+r.Total, "T", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt PDF: %w", err)
	}
	return buf.Bytes(), nil
}
