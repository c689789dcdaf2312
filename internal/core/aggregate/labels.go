package aggregate

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

const (
	keyViable    = "viable"
	keyNonViable = "non_viable"

	labelGap = 4
)

var labelCatalog = newLabelCatalog()

func newLabelCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	entries := []struct {
		tag   language.Tag
		key   string
		value string
	}{
		{language.English, keyViable, "viable"},
		{language.English, keyNonViable, "non_viable"},
		{language.Chinese, keyViable, "可育"},
		{language.Chinese, keyNonViable, "不育"},
	}
	for _, e := range entries {
		if err := b.SetString(e.tag, e.key, e.value); err != nil {
			panic(fmt.Sprintf("label catalog: %v", err))
		}
	}
	return b
}

// Labeler renders "{class} ({viability}) {confidence}" captions. It prefers the
// configured outline font and the configured locale; whenever that font is missing or
// cannot render a rune it draws the English caption with the built-in bitmap face.
// Outline faces carry glyph buffers, so each Draw borrows its own from a pool.
type Labeler struct {
	localized *message.Printer
	english   *message.Printer

	faces    *sync.Pool
	font     *sfnt.Font
	fallback font.Face
}

func NewLabeler(locale string) *Labeler {
	return &Labeler{
		localized: message.NewPrinter(labelLanguage(locale), message.Catalog(labelCatalog)),
		english:   message.NewPrinter(language.English, message.Catalog(labelCatalog)),
		fallback:  basicfont.Face7x13,
	}
}

func labelLanguage(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	if base, _ := tag.Base(); base.String() == "zh" {
		return language.Chinese
	}
	return language.English
}

// WithFont parses an OpenType/TrueType font and uses it as the preferred face.
func (l *Labeler) WithFont(data []byte, size float64) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}
	if size <= 0 {
		size = 14
	}
	opts := &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull}
	first, err := opentype.NewFace(f, opts)
	if err != nil {
		return fmt.Errorf("new font face: %w", err)
	}
	faces := &sync.Pool{New: func() any {
		face, err := opentype.NewFace(f, opts)
		if err != nil {
			return nil
		}
		return face
	}}
	faces.Put(first)
	l.font = f
	l.faces = faces
	return nil
}

// Text returns the caption in the labeler's locale.
func (l *Labeler) Text(class domain.ClassName, viable bool, confidence float64) string {
	return caption(l.localized, class, viable, confidence)
}

func caption(p *message.Printer, class domain.ClassName, viable bool, confidence float64) string {
	key := keyNonViable
	if viable {
		key = keyViable
	}
	return fmt.Sprintf("%s (%s) %.2f", class, p.Sprintf(key), confidence)
}

// Draw writes the caption above box in the variant colour and returns the text drawn.
func (l *Labeler) Draw(dst draw.Image, box image.Rectangle, v domain.Variant, viable bool, confidence float64) string {
	text := l.Text(v.Name, viable, confidence)
	var face font.Face
	if l.faces != nil {
		if pooled, ok := l.faces.Get().(font.Face); ok {
			defer l.faces.Put(pooled)
			face = pooled
		}
	}
	if face == nil || !l.covers(text) {
		text = caption(l.english, v.Name, viable, confidence)
		face = l.fallback
	}

	box = box.Canon()
	ascent := face.Metrics().Ascent.Ceil()
	y := box.Min.Y - labelGap
	if y-ascent < dst.Bounds().Min.Y {
		y = box.Min.Y + ascent + labelGap
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(v.Color),
		Face: face,
		Dot:  fixed.P(box.Min.X, y),
	}
	d.DrawString(text)
	return text
}

func (l *Labeler) covers(text string) bool {
	if l.font == nil {
		return false
	}
	var buf sfnt.Buffer
	for _, r := range text {
		if r == ' ' {
			continue
		}
		idx, err := l.font.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			return false
		}
	}
	return true
}
