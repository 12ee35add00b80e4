package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"ticketly/internal/models"
)

var ErrInvalidClaim = errors.New("invalid or corrupted claim code")

// Claim is the payload embedded in a ticket's QR image. It carries just
// enough to verify the ticket at the door without a join.
type Claim struct {
	TicketID string    `json:"ticket_id"`
	EventID  string    `json:"event_id"`
	TierID   string    `json:"tier_id"`
	IssuedAt time.Time `json:"issued_at"`
}

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// EncodeClaim encrypts the ticket's claim into the string a scanner
// reads back out of the QR image.
func (g *Generator) EncodeClaim(ticket models.Ticket) (string, error) {
	claim := Claim{
		TicketID: ticket.ID,
		EventID:  ticket.EventID,
		TierID:   ticket.TierID,
		IssuedAt: ticket.IssuedAt,
	}

	data, err := json.Marshal(claim)
	if err != nil {
		return "", err
	}

	return encryptAES(data, g.secret)
}

// GenerateEncryptedQR encrypts the ticket's claim and renders it as a
// PNG QR image.
func (g *Generator) GenerateEncryptedQR(ticket models.Ticket) ([]byte, error) {
	encrypted, err := g.EncodeClaim(ticket)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// DecodeClaim decrypts a scanned claim code back into its payload.
func (g *Generator) DecodeClaim(code string) (*Claim, error) {
	data, err := decryptAES(code, g.secret)
	if err != nil {
		return nil, ErrInvalidClaim
	}

	var claim Claim
	if err := json.Unmarshal(data, &claim); err != nil {
		return nil, ErrInvalidClaim
	}
	if claim.TicketID == "" {
		return nil, ErrInvalidClaim
	}
	return &claim, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("ciphertext too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	plaintext := make([]byte, len(ciphertext)-aes.BlockSize)

	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(plaintext, ciphertext[aes.BlockSize:])

	return plaintext, nil
}
