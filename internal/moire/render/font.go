package render

import (
	"fmt"
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// TitleFont hands out faces for plot titles. TrueType faces cache glyphs and must
// not be shared between goroutines, so each draw asks for its own.
type TitleFont struct {
	ttf  *truetype.Font
	size float64
}

// LoadFont reads a TrueType font for plot titles. An empty path selects the
// built-in bitmap face.
func LoadFont(path string, size float64) (*TitleFont, error) {
	if path == "" {
		return &TitleFont{size: size}, nil
	}
	fontBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsed, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return &TitleFont{ttf: parsed, size: size}, nil
}

// Face returns a face for one draw. The bitmap fallback is stateless and shared.
func (f *TitleFont) Face() font.Face {
	if f == nil || f.ttf == nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(f.ttf, &truetype.Options{
		Size:    f.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
