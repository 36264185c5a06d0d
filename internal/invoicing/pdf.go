package invoicing

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/daftar-erp/daftar/internal/config"
	"github.com/daftar-erp/daftar/internal/model"
)

type pdfLabels struct {
	title, number, date, due, billTo, taxNo             string
	item, qty, price, discount, tax, total              string
	subtotal, discTotal, taxTotal, shipping, grandTotal string
	paid, outstanding                                   string
}

var arabicLabels = pdfLabels{
	title: "فاتورة ضريبية", number: "رقم الفاتورة", date: "التاريخ", due: "تاريخ الاستحقاق",
	billTo: "العميل", taxNo: "الرقم الضريبي",
	item: "البند", qty: "الكمية", price: "السعر", discount: "الخصم %", tax: "الضريبة", total: "الإجمالي",
	subtotal: "المجموع", discTotal: "الخصم", taxTotal: "ضريبة القيمة المضافة", shipping: "الشحن",
	grandTotal: "الإجمالي المستحق", paid: "المدفوع", outstanding: "المتبقي",
}

var englishLabels = pdfLabels{
	title: "Tax Invoice", number: "Invoice No", date: "Date", due: "Due Date",
	billTo: "Bill To", taxNo: "VAT No",
	item: "Item", qty: "Qty", price: "Price", discount: "Disc %", tax: "VAT", total: "Total",
	subtotal: "Subtotal", discTotal: "Discount", taxTotal: "VAT", shipping: "Shipping",
	grandTotal: "Total Due", paid: "Paid", outstanding: "Outstanding",
}

// RenderPDF writes inv as an A4 PDF. With biz.PDFFont pointing at a UTF-8
// TrueType font the invoice is laid out right to left with Arabic labels;
// otherwise the built-in Arial font and English labels are used.
func RenderPDF(w io.Writer, inv model.Invoice, customer model.Customer, biz config.BusinessConfig) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	family := "Arial"
	labels := englishLabels
	align, opposite := "L", "R"
	text := pdf.UnicodeTranslatorFromDescriptor("")
	if biz.PDFFont != "" {
		family = "daftar"
		pdf.AddUTF8Font(family, "", biz.PDFFont)
		pdf.AddUTF8Font(family, "B", biz.PDFFont)
		pdf.RTL()
		labels = arabicLabels
		align, opposite = "R", "L"
		text = func(s string) string { return s }
	}
	pdf.SetTitle(inv.Number, true)
	pdf.AddPage()

	pdf.SetFont(family, "B", 16)
	pdf.CellFormat(0, 10, text(biz.Name), "", 1, align, false, 0, "")
	pdf.SetFont(family, "", 10)
	if biz.TaxNumber != "" {
		pdf.CellFormat(0, 6, text(labels.taxNo+": "+biz.TaxNumber), "", 1, align, false, 0, "")
	}
	if biz.Address != "" {
		pdf.CellFormat(0, 6, text(biz.Address), "", 1, align, false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont(family, "B", 14)
	pdf.CellFormat(0, 10, text(labels.title), "", 1, "C", false, 0, "")
	pdf.SetFont(family, "", 10)
	header := [][2]string{
		{labels.number, inv.Number},
		{labels.date, inv.IssueDate.Format("2006-01-02")},
		{labels.due, inv.DueDate.Format("2006-01-02")},
		{labels.billTo, customer.Name},
	}
	if customer.TaxNumber != "" {
		header = append(header, [2]string{labels.taxNo, customer.TaxNumber})
	}
	for _, kv := range header {
		pdf.CellFormat(40, 6, text(kv[0]), "", 0, align, false, 0, "")
		pdf.CellFormat(0, 6, text(kv[1]), "", 1, align, false, 0, "")
	}
	pdf.Ln(4)

	widths := []float64{70, 20, 25, 20, 25, 30}
	pdf.SetFont(family, "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{labels.item, labels.qty, labels.price, labels.discount, labels.tax, labels.total} {
		pdf.CellFormat(widths[i], 8, text(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(family, "", 10)
	for _, it := range inv.Items {
		cells := []string{
			it.Description,
			it.Quantity.String(),
			it.UnitPrice.StringFixed(2),
			it.DiscountPercent.String(),
			it.Tax.StringFixed(2),
			it.Total.StringFixed(2),
		}
		for i, c := range cells {
			a := opposite
			if i == 0 {
				a = align
			}
			pdf.CellFormat(widths[i], 7, text(c), "1", 0, a, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	summary := [][2]string{
		{labels.subtotal, inv.Subtotal.StringFixed(2)},
		{labels.discTotal, inv.DiscountTotal.StringFixed(2)},
		{labels.taxTotal, inv.TaxTotal.StringFixed(2)},
		{labels.shipping, inv.Shipping.StringFixed(2)},
		{labels.grandTotal, fmt.Sprintf("%s %s", inv.Total.StringFixed(2), inv.Currency)},
	}
	if inv.AmountPaid.IsPositive() {
		summary = append(summary,
			[2]string{labels.paid, inv.AmountPaid.StringFixed(2)},
			[2]string{labels.outstanding, inv.Outstanding().StringFixed(2)},
		)
	}
	for i, kv := range summary {
		if i == 4 {
			pdf.SetFont(family, "B", 11)
		}
		pdf.CellFormat(140, 7, text(kv[0]), "", 0, opposite, false, 0, "")
		pdf.CellFormat(50, 7, text(kv[1]), "", 1, opposite, false, 0, "")
		if i == 4 {
			pdf.SetFont(family, "", 10)
		}
	}

	if inv.Notes != "" {
		pdf.Ln(6)
		pdf.MultiCell(0, 5, text(inv.Notes), "", align, false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("rendering %s: %w", inv.Number, err)
	}
	return nil
}
