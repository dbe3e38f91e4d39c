package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/skip2/go-qrcode"

	"bus-ticketing/internal/models"
)

// Generator produces the encrypted boarding-pass QR embedded in a
// confirmed booking. The payload is the PNR plus seat list, AES-CFB
// encrypted so the scanner service is the only party that can read it.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

type boardingPass struct {
	PNR         string   `json:"pnr"`
	BookingID   string   `json:"booking_id"`
	TripID      string   `json:"trip_id"`
	SeatNumbers []string `json:"seat_numbers"`
}

func (g *Generator) GenerateBoardingQR(booking models.Booking) ([]byte, error) {
	data, err := json.Marshal(boardingPass{
		PNR:         booking.PNR,
		BookingID:   booking.BookingID,
		TripID:      booking.TripID,
		SeatNumbers: booking.SeatNumbers(),
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
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
