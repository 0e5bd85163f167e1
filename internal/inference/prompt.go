package inference

import (
	"fmt"
	"strings"
)

// buildPrompt embeds the source message in the extraction instruction. The
// instruction is in the source locale because the inference models follow
// it more reliably when prompt and message languages match.
func buildPrompt(message string) string {
	var b strings.Builder
	b.WriteString("Eres un asistente especializado en extraer información financiera de mensajes en español.\n\n")
	b.WriteString("Analiza el siguiente mensaje y extrae la información financiera en formato JSON:\n\n")
	fmt.Fprintf(&b, "Mensaje: %q\n\n", message)
	b.WriteString(`Debes extraer:
- amount: monto numérico (solo números, sin símbolos)
- description: QUÉ se compró o el servicio/producto (NO el método de pago)
- category: categoría más probable (alimentacion, transporte, servicios, entretenimiento, salud, ropa, educacion, casa, otros)
- payment_method: CÓMO se pagó (tarjeta, efectivo, transferencia, debito) - busca al FINAL del mensaje
- location: lugar si se menciona
- date_offset: días desde hoy (0=hoy, -1=ayer, 1=mañana)
- confidence: nivel de confianza (0.0 a 1.0)

IMPORTANTE:
- La descripción debe ser el producto/servicio, NO el método de pago
- El método de pago usualmente aparece al final: "tarjeta", "efectivo", "transferencia", "débito"

Ejemplos:
- "30k en Uber transferencia" → description: "Uber", payment_method: "transferencia"
- "50k almuerzo tarjeta" → description: "almuerzo", payment_method: "tarjeta"
- "pague 25000 gasolina efectivo" → description: "gasolina", payment_method: "efectivo"

Formatos de dinero válidos:
- "50k" = 50000
- "50mil" = 50000
- "50000" = 50000
- "50.5k" = 50500

Responde ÚNICAMENTE con un JSON válido, sin explicaciones adicionales:

{
  "amount": 50000,
  "description": "almuerzo",
  "category": "alimentacion",
  "payment_method": "tarjeta",
  "location": null,
  "date_offset": 0,
  "confidence": 0.95
}
`)
	return b.String()
}
