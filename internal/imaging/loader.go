package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultFrameCacheSize is the number of decoded frames a FrameLoader keeps
// when no size is given.
const DefaultFrameCacheSize = 4

// FrameLoader loads camera frames from disk and caches the decoded images.
//
// Frames are usually rewritten in place by the capture side, so a cached
// entry is only reused while the file's size and modification time are
// unchanged. Any change triggers a fresh decode. At most the configured
// number of paths is kept; the least recently loaded path is dropped first,
// so a capture side writing one file per frame does not grow the cache.
//
// FrameLoader is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	loader := imaging.NewFrameLoader(4)
//	img, err := loader.Load("/tmp/camera/latest.png")
//	if err != nil {
//	    return err
//	}
type FrameLoader struct {
	frames *lru.Cache[string, cachedFrame]
}

type cachedFrame struct {
	img     image.Image
	format  string
	size    int64
	modTime time.Time
}

// NewFrameLoader creates an empty loader holding up to size frames.
// size < 1 selects DefaultFrameCacheSize.
func NewFrameLoader(size int) *FrameLoader {
	if size < 1 {
		size = DefaultFrameCacheSize
	}
	// New only fails for a non-positive size.
	frames, _ := lru.New[string, cachedFrame](size)
	return &FrameLoader{frames: frames}
}

// Load returns the decoded frame at path.
//
// Parameters:
//   - path: File path of a PNG, JPEG or GIF image.
//
// Returns:
//   - image.Image: The decoded frame.
//   - error: Non-nil if the file cannot be stat'd, opened or decoded.
func (l *FrameLoader) Load(path string) (image.Image, error) {
	f, err := l.load(path)
	if err != nil {
		return nil, err
	}
	return f.img, nil
}

func (l *FrameLoader) load(path string) (cachedFrame, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return cachedFrame{}, fmt.Errorf("failed to stat frame: %w", err)
	}

	if cached, ok := l.frames.Get(path); ok &&
		cached.size == stat.Size() && cached.modTime.Equal(stat.ModTime()) {
		return cached, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cachedFrame{}, fmt.Errorf("failed to open frame: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return cachedFrame{}, fmt.Errorf("failed to decode frame: %w", err)
	}

	entry := cachedFrame{
		img:     img,
		format:  format,
		size:    stat.Size(),
		modTime: stat.ModTime(),
	}
	l.frames.Add(path, entry)
	return entry, nil
}

// FrameInfo describes a frame file.
type FrameInfo struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"` // as reported by the decoder: "png", "jpeg", "gif"
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// Info loads the frame at path and describes it.
func (l *FrameLoader) Info(path string) (*FrameInfo, error) {
	f, err := l.load(path)
	if err != nil {
		return nil, err
	}
	b := f.img.Bounds()
	return &FrameInfo{
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        f.format,
		FileSizeBytes: f.size,
	}, nil
}
