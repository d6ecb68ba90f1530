package editor

import (
	"fmt"
	"math"

	"github.com/ByLCY/diploma/document"
)

// MinElementSize 是缩放时元素宽高的下限（规范分辨率像素）。
const MinElementSize = 10.0

// Point 是编辑器画布上的指针位置（屏幕像素）。
type Point struct {
	X float64
	Y float64
}

type gestureKind int

const (
	gestureDrag gestureKind = iota
	gestureResize
)

// gesture 记录一次拖拽/缩放会话开始时的状态，后续位移都相对于起点计算。
type gesture struct {
	kind   gestureKind
	id     string
	start  Point
	origin document.Common
}

// BeginDrag 开始拖拽元素。同一时刻只允许一个会话。
func (e *Editor) BeginDrag(id string, at Point) error {
	return e.begin(gestureDrag, id, at)
}

// BeginResize 开始缩放元素，元素中心保持不动。
func (e *Editor) BeginResize(id string, at Point) error {
	return e.begin(gestureResize, id, at)
}

func (e *Editor) begin(kind gestureKind, id string, at Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture != nil {
		return ErrDragInProgress
	}
	if e.bounds.Width <= 0 || e.bounds.Height <= 0 {
		return ErrNoCanvas
	}
	el := e.doc.Find(id)
	if el == nil {
		return fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	e.gesture = &gesture{kind: kind, id: id, start: at, origin: *el.Base()}
	e.selected = id
	return nil
}

// DragTo 将指针位移换算为百分比位移：Δpx / 画布包围盒 × 100，结果限制在 [0,100]。
func (e *Editor) DragTo(at Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.gesture
	if g == nil || g.kind != gestureDrag {
		return ErrNoDrag
	}
	dx := (at.X - g.start.X) / e.bounds.Width * 100
	dy := (at.Y - g.start.Y) / e.bounds.Height * 100
	x := document.ClampPercent(g.origin.X + dx)
	y := document.ClampPercent(g.origin.Y + dy)
	e.doc.Update(g.id, document.Patch{X: &x, Y: &y})
	return nil
}

// ResizeTo 将指针位移按规范宽度/画布宽度换算为规范像素，并加到元素宽高上。
// 二维码保持正方形，取两边中较大的一边。
func (e *Editor) ResizeTo(at Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.gesture
	if g == nil || g.kind != gestureResize {
		return ErrNoDrag
	}
	canonicalW, _ := e.doc.CanvasSize()
	ratio := canonicalW / e.bounds.Width
	w := math.Max(MinElementSize, g.origin.Width+(at.X-g.start.X)*ratio)
	h := math.Max(MinElementSize, g.origin.Height+(at.Y-g.start.Y)*ratio)
	p := document.Patch{Width: &w, Height: &h}
	if el := e.doc.Find(g.id); el != nil && el.Kind() == document.KindQRCode {
		side := math.Max(w, h)
		p = document.Patch{Width: &side}
	}
	e.doc.Update(g.id, p)
	return nil
}

// EndDrag 结束当前拖拽或缩放会话。
func (e *Editor) EndDrag() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture == nil {
		return ErrNoDrag
	}
	e.gesture = nil
	return nil
}

// Dragging 返回是否有进行中的会话。
func (e *Editor) Dragging() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gesture != nil
}
