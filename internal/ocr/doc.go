// Package ocr reads the letter printed on a board tile using Tesseract.
//
// Tesseract is reached through gosseract/v2, which links against the native
// library, so tesseract and its language data must be installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Each tile is cropped from the frame, scaled up to a height Tesseract reads
// reliably, and recognized in single-character mode with an A-Z whitelist.
// One Tesseract client is reused for all tiles of a ReadTiles call because
// client initialization dominates the cost of a single-letter read.
package ocr
