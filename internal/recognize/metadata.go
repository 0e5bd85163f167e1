package recognize

import (
	"regexp"
)

// Metadata holds auxiliary receipt fields scanned from recognized text.
type Metadata struct {
	ReceiptNumber string `json:"receipt_number,omitempty"`
	TaxAmount     string `json:"tax_amount,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
}

var (
	reReceiptNum = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:recibo|ticket|factura)[\s#:]*(\d+)`),
		regexp.MustCompile(`(?i)(?:no|num)[\s.:]*(\d+)`),
		regexp.MustCompile(`(\d{6,})`),
	}
	reTax = []*regexp.Regexp{
		regexp.MustCompile(`(?i)iva[\s:]*(\d+[.,]?\d*)`),
		regexp.MustCompile(`(?i)impuesto[\s:]*(\d+[.,]?\d*)`),
	}
	rePhone = regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}`)
	reEmail = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// ScanMetadata pulls receipt number, tax amount and contact details from
// recognized text. Everything here is best-effort; absent fields stay
// empty.
func ScanMetadata(text string) Metadata {
	var md Metadata

	for _, re := range reReceiptNum {
		if m := re.FindStringSubmatch(text); m != nil {
			md.ReceiptNumber = m[1]
			break
		}
	}
	for _, re := range reTax {
		if m := re.FindStringSubmatch(text); m != nil {
			md.TaxAmount = m[1]
			break
		}
	}
	if m := rePhone.FindString(text); m != "" {
		md.Phone = m
	}
	if m := reEmail.FindString(text); m != "" {
		md.Email = m
	}
	return md
}
