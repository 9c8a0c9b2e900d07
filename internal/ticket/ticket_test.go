package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		seq  int
		want string
	}{
		{name: "first ticket", seq: 1, want: "MC-2025-0001"},
		{name: "seventh ticket", seq: 7, want: "MC-2025-0007"},
		{name: "three digits", seq: 123, want: "MC-2025-0123"},
		{name: "padding boundary below", seq: 9999, want: "MC-2025-9999"},
		{name: "padding boundary above grows", seq: 10000, want: "MC-2025-10000"},
		{name: "well past padding", seq: 10001, want: "MC-2025-10001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(tt.seq))
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	p := Payload{
		Ticket: "MC-2025-0042",
		Email:  "ada@example.org",
		Name:   "Ada Lovelace",
	}

	encoded := EncodePayload(p)
	require.NotEmpty(t, encoded)

	decoded, err := DecodePayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	_, err := DecodePayload("not base64!!!")
	assert.Error(t, err)

	// Valid base64 but not JSON.
	_, err = DecodePayload("aGVsbG8gd29ybGQ=")
	assert.Error(t, err)
}

func TestQRImageURL(t *testing.T) {
	got := QRImageURL("https://millennialcircuit.org", "MC-2025-0007")
	assert.Equal(t,
		"https://api.qrserver.com/v1/create-qr-code/?size=300x300&data=https%3A%2F%2Fmillennialcircuit.org%2Fticket%2FMC-2025-0007",
		got,
	)
}
