package scope

import (
	"image/color"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/gopedal/pkg/record"
	"github.com/itohio/gopedal/pkg/telemetry"
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

// plotArea is the drawable region inside the axis margins.
type plotArea struct {
	x, y, width, height float32
}

func newPlotArea(size fyne.Size) plotArea {
	const (
		marginLeft   = 50
		marginRight  = 20
		marginTop    = 20
		marginBottom = 40
	)
	return plotArea{
		x:      marginLeft,
		y:      marginTop,
		width:  size.Width - marginLeft - marginRight,
		height: size.Height - marginTop - marginBottom,
	}
}

// project maps a timestamp and an output value (0..OutputMax) to a point.
func (p plotArea) project(t, xMin, xMax time.Time, v int) fyne.Position {
	span := xMax.Sub(xMin).Seconds()
	fx := float32(0)
	if span > 0 {
		fx = float32(t.Sub(xMin).Seconds() / span)
	}
	fy := float32(v) / record.OutputMax
	return fyne.NewPos(p.x+fx*p.width, p.y+p.height-fy*p.height)
}

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope      *ScopeWidget
	background *canvas.Rectangle
	objects    []fyne.CanvasObject
	lastSize   fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the traces.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	frames := r.scope.display
	latest := r.scope.latest
	xMin, xMax := r.scope.xMin, r.scope.xMax
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.background}
	area := newPlotArea(size)

	r.drawGrid(area, xMin, xMax)
	for ch := record.Channel(0); ch < record.NumChannels; ch++ {
		r.drawTrace(area, frames, ch, xMin, xMax)
	}
	r.drawLegend(area, latest, len(frames) > 0)
}

func (r *scopeRenderer) drawGrid(area plotArea, xMin, xMax time.Time) {
	// Horizontal lines every 1/8 of the output range
	const numHLines = 8
	for i := range numHLines + 1 {
		v := record.OutputMax * i / numHLines
		y := area.project(xMin, xMin, xMax, v).Y
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(area.x, y)
		line.Position2 = fyne.NewPos(area.x+area.width, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		text := canvas.NewText(strconv.Itoa(v), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(area.x-5, y-6))
		r.objects = append(r.objects, text)
	}

	const numVLines = 10
	span := xMax.Sub(xMin)
	for i := range numVLines + 1 {
		x := area.x + float32(i)*area.width/numVLines
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(x, area.y)
		line.Position2 = fyne.NewPos(x, area.y+area.height)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		offset := span * time.Duration(i) / numVLines
		text := canvas.NewText(formatTime(offset), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, area.y+area.height+5))
		r.objects = append(r.objects, text)
	}
}

func (r *scopeRenderer) drawTrace(area plotArea, frames []telemetry.Frame, ch record.Channel, xMin, xMax time.Time) {
	if len(frames) < 2 {
		return
	}

	prev := area.project(frames[0].Time, xMin, xMax, frames[0].Out[ch])
	for _, f := range frames[1:] {
		next := area.project(f.Time, xMin, xMax, f.Out[ch])
		line := canvas.NewLine(channelColors[ch])
		line.Position1 = prev
		line.Position2 = next
		line.StrokeWidth = 1.5
		r.objects = append(r.objects, line)
		prev = next
	}
}

// drawLegend prints each channel's name with its latest raw and output value.
func (r *scopeRenderer) drawLegend(area plotArea, latest telemetry.Frame, valid bool) {
	for ch := record.Channel(0); ch < record.NumChannels; ch++ {
		label := ch.String()
		if valid {
			label += " " + strconv.Itoa(latest.Out[ch]) + " (raw " + strconv.FormatInt(int64(latest.Raw[ch]), 10) + ")"
		}
		text := canvas.NewText(label, channelColors[ch])
		text.TextSize = 11
		text.Move(fyne.NewPos(area.x+10, area.y+5+float32(ch)*14))
		r.objects = append(r.objects, text)
	}
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}
