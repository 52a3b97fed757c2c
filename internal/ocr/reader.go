package ocr

import (
	"fmt"
	"image"
	"strings"
	"unicode"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
	"github.com/ironsheep/board-tracker-mcp/internal/imaging"
)

// letterWhitelist limits recognition to the letters that appear on tiles.
const letterWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// defaultTileHeight is the height tiles are scaled to before recognition.
const defaultTileHeight = 64

// Letter is the result of reading one tile.
type Letter struct {
	// Text is the single upper-case letter read, or "" when nothing was read.
	Text string `json:"text"`

	// Confidence is Tesseract's symbol confidence (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Raw is the unfiltered Tesseract output.
	Raw string `json:"raw,omitempty"`
}

// Reader reads tile letters.
type Reader struct {
	// TessdataPrefix is the directory holding *.traineddata. Empty uses the
	// Tesseract default.
	TessdataPrefix string

	// Language is the Tesseract language code, "eng" when empty.
	Language string

	// TileHeight is the height tiles are scaled to, defaultTileHeight when <= 0.
	TileHeight int
}

// NewReader creates a Reader for the given tessdata directory and language.
func NewReader(tessdataPrefix, language string) *Reader {
	return &Reader{TessdataPrefix: tessdataPrefix, Language: language}
}

// Version returns the linked Tesseract version.
func Version() string {
	return gosseract.Version()
}

// ReadTiles reads one letter per rectangle, in order. A rectangle that covers
// no pixels of img fails the whole call.
func (r *Reader) ReadTiles(img image.Image, rects []geom.Rect) ([]Letter, error) {
	if img == nil {
		return nil, fmt.Errorf("no image to read")
	}

	client, err := r.newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	letters := make([]Letter, 0, len(rects))
	for _, rect := range rects {
		l, err := r.read(client, img, rect)
		if err != nil {
			return nil, err
		}
		letters = append(letters, l)
	}
	return letters, nil
}

func (r *Reader) newClient() (*gosseract.Client, error) {
	client := gosseract.NewClient()

	if r.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(r.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}

	lang := r.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_CHAR); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetWhitelist(letterWhitelist); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	return client, nil
}

func (r *Reader) read(client *gosseract.Client, img image.Image, rect geom.Rect) (Letter, error) {
	crop, _, err := imaging.CropRegion(img, rect)
	if err != nil {
		return Letter{}, err
	}

	height := r.TileHeight
	if height <= 0 {
		height = defaultTileHeight
	}
	data, err := imaging.PNGBytes(imaging.ScaleToHeight(crop, height))
	if err != nil {
		return Letter{}, err
	}

	if err := client.SetImageFromBytes(data); err != nil {
		return Letter{}, fmt.Errorf("failed to set image: %w", err)
	}
	raw, err := client.Text()
	if err != nil {
		return Letter{}, fmt.Errorf("OCR failed: %w", err)
	}

	l := Letter{Text: normalizeLetter(raw), Raw: raw}
	if l.Text == "" {
		return l, nil
	}

	// Symbol boxes are optional; a failure leaves confidence at zero.
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_SYMBOL)
	if err == nil {
		l.Confidence = symbolConfidence(boxes, l.Text)
	}
	return l, nil
}

// normalizeLetter reduces raw Tesseract output to a single upper-case A-Z
// letter. Output with no letter or with more than one letter yields "".
func normalizeLetter(raw string) string {
	var found rune
	for _, c := range strings.TrimSpace(raw) {
		if unicode.IsSpace(c) {
			continue
		}
		c = unicode.ToUpper(c)
		if c < 'A' || c > 'Z' {
			continue
		}
		if found != 0 {
			return ""
		}
		found = c
	}
	if found == 0 {
		return ""
	}
	return string(found)
}

// symbolConfidence returns the confidence of the best box whose text matches
// letter, scaled to 0-1.
func symbolConfidence(boxes []gosseract.BoundingBox, letter string) float64 {
	best := 0.0
	for _, b := range boxes {
		if !strings.EqualFold(strings.TrimSpace(b.Word), letter) {
			continue
		}
		if c := b.Confidence / 100.0; c > best {
			best = c
		}
	}
	return best
}
