package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Tesseract runs OCR with the tesseract binary.
type Tesseract struct {
	Path     string
	Language string
}

// Recognize runs tesseract over image. The text artifact is written next to
// the image and removed before returning.
func (t *Tesseract) Recognize(ctx context.Context, image string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	base := strings.TrimSuffix(image, ".png") + "_ocr"
	textFile := base + ".txt"
	defer os.Remove(textFile)

	lang := t.Language
	if lang == "" {
		lang = "eng"
	}

	cmd := newCommand(ctx, t.Path, image, base, "-l", lang)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, lastLine(stderr.String()))
	}

	data, err := os.ReadFile(textFile)
	if err != nil {
		return "", fmt.Errorf("failed to read recognised text: %w", err)
	}

	return string(data), nil
}
