// internal/auth/otp.go
package auth

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var (
	// ErrNoBarcode is returned when an image holds no readable QR code.
	ErrNoBarcode = errors.New("no QR code found in image")
	// ErrNotOTPURI is returned when a QR payload is not an otpauth:// URI.
	ErrNotOTPURI = errors.New("QR payload is not an otpauth URI")
	// ErrMissingSecret is returned when an otpauth URI carries no usable secret.
	ErrMissingSecret = errors.New("otpauth URI has no secret")
)

// OTPKey is the decoded content of an enrollment QR code.
type OTPKey struct {
	URI     string
	Issuer  string
	Account string
	Secret  string
	Period  uint64
}

// DecodeQRFile reads an image from disk and returns the QR payload text.
func DecodeQRFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open QR image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoBarcode, err)
	}
	return DecodeQR(img)
}

// DecodeQR returns the text of the QR code found in img.
func DecodeQR(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoBarcode, err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoBarcode, err)
	}
	return result.GetText(), nil
}

// ParseOTPURI validates an otpauth:// URI and extracts its secret.
func ParseOTPURI(payload string) (*OTPKey, error) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(strings.ToLower(payload), "otpauth://") {
		return nil, ErrNotOTPURI
	}

	key, err := otp.NewKeyFromURL(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotOTPURI, err)
	}

	secret := NormalizeSecret(key.Secret())
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if _, err := totp.GenerateCode(secret, time.Now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingSecret, err)
	}

	period := key.Period()
	if period == 0 {
		period = 30
	}

	return &OTPKey{
		URI:     payload,
		Issuer:  key.Issuer(),
		Account: key.AccountName(),
		Secret:  secret,
		Period:  period,
	}, nil
}

// CurrentCode derives the TOTP code for secret at the given time.
func CurrentCode(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCode(NormalizeSecret(secret), at)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingSecret, err)
	}
	return code, nil
}

// SecondsRemaining returns how long the code generated at t stays valid.
func SecondsRemaining(at time.Time, period uint64) int {
	if period == 0 {
		period = 30
	}
	return int(period - uint64(at.Unix())%period)
}
