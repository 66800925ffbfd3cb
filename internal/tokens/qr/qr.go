package qr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/skip2/go-qrcode"
)

// Renderer writes one PNG per token into OutputDir, encoding the redemption
// URL for that token code. Rendering and deletion are best-effort side
// effects of issuance and reissue; callers must never fail the primary
// operation on a renderer error.
type Renderer struct {
	BaseURL   string
	OutputDir string
}

func NewRenderer(baseURL, outputDir string) *Renderer {
	return &Renderer{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		OutputDir: outputDir,
	}
}

// Payload returns the URL encoded into the QR image.
func (r *Renderer) Payload(tokenCode string) string {
	return fmt.Sprintf("%s/token/%s", r.BaseURL, tokenCode)
}

func (r *Renderer) path(tokenCode string) string {
	return filepath.Join(r.OutputDir, tokenCode+".png")
}

// Render writes the PNG for a token code.
func (r *Renderer) Render(tokenCode string) error {
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return fmt.Errorf("qr: create output dir: %w", err)
	}
	if err := qrcode.WriteFile(r.Payload(tokenCode), qrcode.Medium, 256, r.path(tokenCode)); err != nil {
		return fmt.Errorf("qr: write %s: %w", r.path(tokenCode), err)
	}
	return nil
}

// Delete removes the PNG for a superseded token code. A missing file is not
// an error.
func (r *Renderer) Delete(tokenCode string) error {
	err := os.Remove(r.path(tokenCode))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("qr: delete %s: %w", r.path(tokenCode), err)
	}
	return nil
}
