// Package ticket implements ticket-number formatting and the QR payload codec.
package ticket

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
)

// NumberPrefix is the human-readable prefix on every ticket number.
const NumberPrefix = "MC-2025-"

// qrImageEndpoint renders an arbitrary URL as a scannable QR image.
const qrImageEndpoint = "https://api.qrserver.com/v1/create-qr-code/"

// FormatNumber renders a 1-based sequence number as a ticket number, e.g.
// MC-2025-0007. The 4-digit padding is a minimum width: sequence 10001
// formats as MC-2025-10001, never truncated.
func FormatNumber(seq int) string {
	return fmt.Sprintf("%s%04d", NumberPrefix, seq)
}

// Payload is the structured record embedded in a ticket's QR code field.
type Payload struct {
	Ticket string `json:"ticket"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// EncodePayload serializes the payload as base64-wrapped JSON. The blob is
// stored verbatim on the ticket row and must stay decodable for verification.
func EncodePayload(p Payload) string {
	b, _ := json.Marshal(p)
	return base64.StdEncoding.EncodeToString(b)
}

// DecodePayload reverses EncodePayload.
func DecodePayload(encoded string) (Payload, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("decode ticket payload: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Payload{}, fmt.Errorf("unmarshal ticket payload: %w", err)
	}
	return p, nil
}

// QRImageURL builds the third-party image URL that renders the ticket link
// as a QR code. The encoded link is <baseURL>/ticket/<number>.
func QRImageURL(baseURL, number string) string {
	link := fmt.Sprintf("%s/ticket/%s", baseURL, number)
	return qrImageEndpoint + "?size=300x300&data=" + url.QueryEscape(link)
}
