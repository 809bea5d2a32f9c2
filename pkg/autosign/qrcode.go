package autosign

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/skip2/go-qrcode"
)

// For a pdf page, size 80 is readable by phone cameras
const QRCodeSize = 80

func GenerateQRCode(link, outputPath string, size int) error {
	err := qrcode.WriteFile(link, qrcode.Medium, size, outputPath)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}
	return nil
}

// EmbedVerificationQRCode puts a QR code linking to the audit verification page
// in the bottom right corner of every page.
func (r *Renderer) EmbedVerificationQRCode(inFile, outFile, link string) error {
	qrFile, err := os.CreateTemp(r.cfg.TmpDir, "autosign_qr_*.png")
	if err != nil {
		return err
	}
	qrFile.Close()
	defer os.Remove(qrFile.Name())

	if err := GenerateQRCode(link, qrFile.Name(), QRCodeSize); err != nil {
		return err
	}

	description := "pos:br, off:-10 10, scale:1 abs, rotation:0"
	if err := api.AddImageWatermarksFile(inFile, outFile, nil, true, qrFile.Name(), description, nil); err != nil {
		return fmt.Errorf("failed to embed QR code in PDF: %w", err)
	}
	return nil
}
