// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const mmPerInch = 25.4

// PageSize names a standard paper size.
type PageSize string

const (
	PageA3      PageSize = "A3"
	PageA4      PageSize = "A4"
	PageA5      PageSize = "A5"
	PageB5      PageSize = "B5"
	PageLetter  PageSize = "Letter"
	PageLegal   PageSize = "Legal"
	PageTabloid PageSize = "Tabloid"
)

// pageSizesMM holds portrait width and height in millimetres.
var pageSizesMM = map[PageSize][2]float64{
	PageA3:      {297, 420},
	PageA4:      {210, 297},
	PageA5:      {148, 210},
	PageB5:      {176, 250},
	PageLetter:  {215.9, 279.4},
	PageLegal:   {215.9, 355.6},
	PageTabloid: {279.4, 431.8},
}

// PageSizes lists the supported paper sizes in sorted order.
func PageSizes() []string {
	names := make([]string, 0, len(pageSizesMM))
	for size := range pageSizesMM {
		names = append(names, string(size))
	}
	sort.Strings(names)
	return names
}

// ParsePageSize matches a paper size name case-insensitively.
func ParsePageSize(s string) (PageSize, error) {
	s = strings.TrimSpace(s)
	for size := range pageSizesMM {
		if strings.EqualFold(string(size), s) {
			return size, nil
		}
	}
	return "", fmt.Errorf("unknown page size %q (expected one of %s)", s, strings.Join(PageSizes(), ", "))
}

// Orientation is portrait or landscape.
type Orientation int

const (
	Portrait Orientation = iota
	Landscape
)

// String returns the wkhtmltopdf spelling.
func (o Orientation) String() string {
	if o == Landscape {
		return "Landscape"
	}
	return "Portrait"
}

// ParseOrientation parses "portrait" or "landscape".
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "portrait":
		return Portrait, nil
	case "landscape":
		return Landscape, nil
	default:
		return Portrait, fmt.Errorf("unknown orientation %q", s)
	}
}

// PageLayout is the page geometry used for PDF output. Margins are in
// millimetres.
type PageLayout struct {
	PageSize    PageSize
	Orientation Orientation

	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64
}

// DefaultPageLayout returns A4 portrait with 20mm margins.
func DefaultPageLayout() *PageLayout {
	return &PageLayout{
		PageSize:     PageA4,
		Orientation:  Portrait,
		MarginTop:    20,
		MarginBottom: 20,
		MarginLeft:   20,
		MarginRight:  20,
	}
}

// UniformMargins sets all four margins to mm.
func (l *PageLayout) UniformMargins(mm float64) {
	l.MarginTop, l.MarginBottom, l.MarginLeft, l.MarginRight = mm, mm, mm, mm
}

// Validate checks the size is known and the margins leave a printable area.
func (l *PageLayout) Validate() error {
	dims, ok := pageSizesMM[l.PageSize]
	if !ok {
		return fmt.Errorf("unknown page size %q", l.PageSize)
	}
	for _, m := range []float64{l.MarginTop, l.MarginBottom, l.MarginLeft, l.MarginRight} {
		if m < 0 {
			return errors.New("margins must not be negative")
		}
	}
	w, h := dims[0], dims[1]
	if l.Orientation == Landscape {
		w, h = h, w
	}
	if l.MarginLeft+l.MarginRight >= w || l.MarginTop+l.MarginBottom >= h {
		return errors.New("margins leave no printable area")
	}
	return nil
}

// PaperSizeMM returns the oriented paper width and height in millimetres.
func (l *PageLayout) PaperSizeMM() (width, height float64) {
	dims := pageSizesMM[l.PageSize]
	if l.Orientation == Landscape {
		return dims[1], dims[0]
	}
	return dims[0], dims[1]
}

// PaperSizeInches returns the oriented paper width and height in inches.
func (l *PageLayout) PaperSizeInches() (width, height float64) {
	w, h := l.PaperSizeMM()
	return w / mmPerInch, h / mmPerInch
}

// MarginsInches returns top, bottom, left and right margins in inches.
func (l *PageLayout) MarginsInches() (top, bottom, left, right float64) {
	return l.MarginTop / mmPerInch, l.MarginBottom / mmPerInch, l.MarginLeft / mmPerInch, l.MarginRight / mmPerInch
}

// String describes the layout for log lines, e.g. "A4 Portrait (20/20/20/20 mm)".
func (l *PageLayout) String() string {
	return fmt.Sprintf("%s %s (%g/%g/%g/%g mm)", l.PageSize, l.Orientation,
		l.MarginTop, l.MarginBottom, l.MarginLeft, l.MarginRight)
}
