package auth

import (
	"bytes"
	"encoding/base32"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/spec-kit/employee-portal/internal/domain"
)

const (
	secretSize = 20
	totpPeriod = 30
	qrSize     = 200
)

var (
	ErrNoTwoFactorSecret = errors.New("employee has no two-factor secret")

	secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// TwoFactorProvider implements Google Authenticator compatible TOTP.
type TwoFactorProvider struct {
	issuer string
	now    func() time.Time
}

// NewTwoFactorProvider returns a provider labelling URIs with issuer.
func NewTwoFactorProvider(issuer string) *TwoFactorProvider {
	return &TwoFactorProvider{issuer: issuer, now: time.Now}
}

// GenerateSecret returns a fresh base32 shared secret.
func (p *TwoFactorProvider) GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: p.issuer,
		SecretSize:  secretSize,
	})
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), nil
}

// QRContent returns the otpauth:// provisioning URI for the employee.
func (p *TwoFactorProvider) QRContent(e *domain.Employee) (string, error) {
	if e == nil || !e.HasTwoFactor() {
		return "", ErrNoTwoFactorSecret
	}
	raw, err := secretEncoding.DecodeString(strings.ToUpper(e.TwoFactorSecret))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: e.Email,
		Period:      totpPeriod,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("build totp uri: %w", err)
	}
	return key.URL(), nil
}

// Verify checks a code against the employee secret, tolerating one period of drift.
func (p *TwoFactorProvider) Verify(e *domain.Employee, code string) bool {
	if e == nil || !e.HasTwoFactor() {
		return false
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), e.TwoFactorSecret, p.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// QRCodePNG renders content as a 200x200 PNG with error correction level H
// and no quiet zone. Modules are scaled by a whole factor and the remainder
// is left as margin around the code.
func (p *TwoFactorProvider) QRCodePNG(content string) ([]byte, error) {
	code, err := qr.Encode(content, qr.H, qr.Unicode)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	scaled, err := barcode.Scale(code, qrSize, qrSize)
	if err != nil {
		return nil, fmt.Errorf("scale qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
