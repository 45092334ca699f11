package services

import (
	"os"
)

// ResolvedFont points at TTF files covering the Polish alphabet. BoldPath
// falls back to the regular face when no bold variant is installed.
type ResolvedFont struct {
	RegularPath string
	BoldPath    string
}

// FontResolver locates a usable text font for the PDF renderer. The renderer
// receives it as a capability so boundaries and tests can substitute their
// own; when resolution fails the renderer degrades to the built-in monospace
// core font.
type FontResolver interface {
	Resolve() (ResolvedFont, bool)
}

type fontCandidate struct {
	regular string
	bold    string
}

// PlatformFontResolver probes a fixed list of well-known font locations
// (Linux DejaVu/Liberation, macOS and Windows Arial).
type PlatformFontResolver struct {
	candidates []fontCandidate
}

func NewPlatformFontResolver() *PlatformFontResolver {
	return &PlatformFontResolver{
		candidates: []fontCandidate{
			{
				regular: "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
				bold:    "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
			},
			{
				regular: "/usr/share/fonts/dejavu/DejaVuSans.ttf",
				bold:    "/usr/share/fonts/dejavu/DejaVuSans-Bold.ttf",
			},
			{
				regular: "/usr/share/fonts/TTF/DejaVuSans.ttf",
				bold:    "/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
			},
			{
				regular: "/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
				bold:    "/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
			},
			{
				regular: "/usr/share/fonts/liberation-sans/LiberationSans-Regular.ttf",
				bold:    "/usr/share/fonts/liberation-sans/LiberationSans-Bold.ttf",
			},
			{
				regular: "/System/Library/Fonts/Supplemental/Arial.ttf",
				bold:    "/System/Library/Fonts/Supplemental/Arial Bold.ttf",
			},
			{
				regular: "/Library/Fonts/Arial.ttf",
				bold:    "/Library/Fonts/Arial Bold.ttf",
			},
			{
				regular: `C:\Windows\Fonts\arial.ttf`,
				bold:    `C:\Windows\Fonts\arialbd.ttf`,
			},
		},
	}
}

func (r *PlatformFontResolver) Resolve() (ResolvedFont, bool) {
	for _, c := range r.candidates {
		if _, err := os.Stat(c.regular); err != nil {
			continue
		}
		font := ResolvedFont{RegularPath: c.regular, BoldPath: c.bold}
		if _, err := os.Stat(c.bold); err != nil {
			font.BoldPath = c.regular
		}
		return font, true
	}
	return ResolvedFont{}, false
}
