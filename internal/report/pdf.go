package report

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Document is what goes into a PDF report.
type Document struct {
	Title     string
	Generated time.Time
	Summary   SummaryView
	Rows      []RowView
}

// PDFRenderer turns a report document into a PDF.
type PDFRenderer interface {
	RenderPDF(w io.Writer, doc Document) error
}

// WritePDF renders the visible rows and the summary through r.
func (t *Table) WritePDF(w io.Writer, r PDFRenderer, summary SummaryView, now time.Time) error {
	return r.RenderPDF(w, Document{
		Title:     "Penguin Health Report",
		Generated: now,
		Summary:   summary,
		Rows:      t.Rows(),
	})
}

// PageCount is the number of pages needed to show an image of height imgH
// on pages of height pageH. It is at least one.
func PageCount(imgH, pageH float64) int {
	if pageH <= 0 || imgH <= pageH {
		return 1
	}
	return int(math.Ceil(imgH / pageH))
}

// RasterPDF draws the report into a bitmap and slices the bitmap across A4
// portrait pages.
type RasterPDF struct {
	Width int // layout width in pixels before scaling
	Scale int
}

func NewRasterPDF() RasterPDF {
	return RasterPDF{Width: 740, Scale: 2}
}

func (r RasterPDF) RenderPDF(w io.Writer, doc Document) error {
	pdf, err := r.build(doc)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

func (r RasterPDF) build(doc Document) (*fpdf.Fpdf, error) {
	img := r.rasterize(doc)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode report image: %w", err)
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("report", opts, &buf)

	pageW, pageH := pdf.GetPageSize()
	b := img.Bounds()
	imgH := float64(b.Dy()) * pageW / float64(b.Dx())
	for k := 0; k < PageCount(imgH, pageH); k++ {
		pdf.AddPage()
		pdf.ImageOptions("report", 0, -float64(k)*pageH, pageW, imgH, false, opts, 0, "")
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	return pdf, nil
}

const (
	padding   = 20
	lineH     = 18
	cellPadX  = 5
	rowH      = 22
	charWidth = 7
)

var (
	black     = image.NewUniform(color.Black)
	white     = image.NewUniform(color.White)
	summaryBG = image.NewUniform(color.RGBA{R: 0xf5, G: 0xf5, B: 0xf5, A: 0xff})
	border    = image.NewUniform(color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff})
)

// rasterize lays out title, date, summary and table at r.Width pixels and
// scales the result by r.Scale.
func (r RasterPDF) rasterize(doc Document) image.Image {
	width := r.Width
	if width <= 0 {
		width = 740
	}
	scale := r.Scale
	if scale <= 0 {
		scale = 1
	}

	summaryLines := []string{
		"Total Penguins: " + doc.Summary.TotalPenguins,
		"Average Weight (7d): " + doc.Summary.AvgWeight,
		"Heaviest Penguin: " + doc.Summary.Heaviest,
		"Lightest Penguin: " + doc.Summary.Lightest,
	}
	summaryH := lineH*(len(summaryLines)+1) + 2*10
	height := padding + lineH*2 + summaryH + 20 + rowH*(len(doc.Rows)+1) + padding

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), white, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: black, Face: basicfont.Face7x13}

	y := padding + 13
	text(d, (width-measure(doc.Title))/2, y, doc.Title)
	y += lineH
	generated := "Generated on: " + doc.Generated.Format("1/2/2006")
	text(d, width-padding-measure(generated), y, generated)
	y += lineH

	box := image.Rect(padding, y, width-padding, y+summaryH)
	draw.Draw(img, box, summaryBG, image.Point{}, draw.Src)
	ly := y + 10 + 13
	text(d, padding+10, ly, "Summary")
	for _, l := range summaryLines {
		ly += lineH
		text(d, padding+10, ly, l)
	}
	y += summaryH + 20

	cols := []string{"ID", "Last Seen", "Current Weight", "Avg Weight (7d)", "Status", "Notes"}
	colW := (width - 2*padding) / len(cols)
	drawRow(img, d, y, colW, cols)
	for _, row := range doc.Rows {
		y += rowH
		drawRow(img, d, y, colW, []string{row.ID, row.LastSeen, row.CurrentWeight, row.AvgWeight, row.Status, row.Notes})
	}

	if scale == 1 {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out
}

func drawRow(img *image.RGBA, d *font.Drawer, y, colW int, cells []string) {
	for i, c := range cells {
		x := padding + i*colW
		cell := image.Rect(x, y, x+colW+1, y+rowH+1)
		outline(img, cell)
		text(d, x+cellPadX, y+15, truncate(c, (colW-2*cellPadX)/charWidth))
	}
}

func outline(img *image.RGBA, r image.Rectangle) {
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), border, image.Point{}, draw.Src)
}

func text(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	d.DrawString(s)
}

func measure(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return string(r[:1])
	}
	return string(r[:n-1]) + "~"
}
