package host

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"github.com/maruel/natural"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"aside/annotate"
)

// libraryIndex is the name of the XML index an avatar library directory
// carries: <library><avatar name="Serena" file="serena.png"/>...</library>.
const libraryIndex = "library.xml"

// Library is a directory of named avatar images.
type Library struct {
	dir     string
	entries []annotate.AvatarEntry
}

// LoadLibrary reads the avatar library index and verifies that every entry
// points at a real image file. Entries with missing or non-image files are
// dropped with a warning, not an error - a broken library should degrade to
// fewer avatars, never break annotation.
func LoadLibrary(dir string, log *zap.Logger) (*Library, error) {
	if log == nil {
		log = zap.NewNop()
	}

	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		ValidateInput: false,
		Permissive:    true,
	}
	if err := doc.ReadFromFile(filepath.Join(dir, libraryIndex)); err != nil {
		return nil, fmt.Errorf("unable to read avatar library index: %w", err)
	}

	root := doc.SelectElement("library")
	if root == nil {
		return nil, fmt.Errorf("avatar library index has no library element")
	}

	lib := &Library{dir: dir}
	for _, el := range root.SelectElements("avatar") {
		name := el.SelectAttrValue("name", "")
		file := el.SelectAttrValue("file", "")
		if name == "" || file == "" {
			log.Warn("Avatar entry missing name or file, skipping")
			continue
		}
		path := filepath.Join(dir, filepath.Clean(file))
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Avatar file unreadable, skipping", zap.String("name", name), zap.Error(err))
			continue
		}
		if !filetype.IsImage(data) {
			log.Warn("Avatar file is not an image, skipping", zap.String("name", name), zap.String("file", file))
			continue
		}
		lib.entries = append(lib.entries, annotate.AvatarEntry{Name: name, URL: file})
	}

	sort.Slice(lib.entries, func(i, j int) bool {
		return natural.Less(lib.entries[i].Name, lib.entries[j].Name)
	})
	return lib, nil
}

// Entries returns library entries in natural name order.
func (l *Library) Entries() []annotate.AvatarEntry {
	return l.entries
}

// Resolver builds a scored resolver over the library entries.
func (l *Library) Resolver(threshold int) *annotate.LibraryResolver {
	return annotate.NewLibraryResolver(l.entries, threshold)
}

// initial avatar palette, picked by name hash so a speaker keeps its color
var avatarPalette = []string{
	"#7c5cbf", "#3b7dd8", "#2e9e83", "#c0563b", "#b3822e", "#8a4f7d",
}

// round backdrop only - the initial is drawn separately since the SVG
// rasterizer handles shapes, not text
const initialAvatarSVG = `<svg viewBox="0 0 128 128" xmlns="http://www.w3.org/2000/svg">
  <circle cx="64" cy="64" r="62" fill="%s"/>
</svg>`

// GenerateInitialAvatar renders a round initial-letter avatar for a speaker
// that has no library entry and returns it as PNG of the requested size.
func GenerateInitialAvatar(name string, size int) ([]byte, error) {
	if size <= 0 {
		size = 64
	}
	initial := '?'
	for _, r := range strings.TrimSpace(name) {
		initial = unicode.ToUpper(r)
		break
	}

	hash := 0
	for _, r := range name {
		hash = hash*31 + int(r)
	}
	if hash < 0 {
		hash = -hash
	}
	fill := avatarPalette[hash%len(avatarPalette)]

	svg := fmt.Sprintf(initialAvatarSVG, fill)

	// rasterize above target size, downscale for clean edges
	backdrop, err := rasterizeSVG([]byte(svg), size*2)
	if err != nil {
		return nil, fmt.Errorf("unable to rasterize avatar for %q: %w", name, err)
	}

	letter := renderInitial(initial)
	// the glyph fills roughly half the circle
	letter = imaging.Resize(letter, 0, max(size/2, 1), imaging.Lanczos)
	img := imaging.OverlayCenter(imaging.Resize(backdrop, size, size, imaging.Lanczos), letter, 1.0)

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("unable to encode avatar for %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// renderInitial draws one glyph in white on a transparent backdrop.
func renderInitial(r rune) image.Image {
	face := basicfont.Face7x13
	s := string(r)

	w := font.MeasureString(face, s).Ceil()
	if w <= 0 {
		w = face.Advance
	}
	h := face.Height

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(s)
	return dst
}

// rasterizeSVG renders SVG data into a square RGBA image of the given side.
func rasterizeSVG(svgData []byte, side int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, err
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		return nil, fmt.Errorf("svg has no usable viewBox")
	}
	icon.SetTarget(0, 0, float64(side), float64(side))

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.RGBA{0, 0, 0, 0}}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(side, side, dst, dst.Bounds())
	dasher := rasterx.NewDasher(side, side, scanner)
	icon.Draw(dasher, 1.0)
	return dst, nil
}
