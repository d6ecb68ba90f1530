package editor

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ByLCY/diploma/binding"
	"github.com/ByLCY/diploma/document"
	"github.com/ByLCY/diploma/layout"
)

var (
	// ErrCapabilityDenied 表示当前能力集合不允许该操作。
	ErrCapabilityDenied = errors.New("当前能力集合不允许该操作")
	// ErrDragInProgress 表示拖拽/缩放会话进行中，其它修改被拒绝。
	ErrDragInProgress = errors.New("拖拽进行中")
	// ErrNoSelection 表示没有选中的元素。
	ErrNoSelection = errors.New("没有选中的元素")
	// ErrNoDrag 表示没有进行中的拖拽/缩放会话。
	ErrNoDrag = errors.New("没有进行中的拖拽")
	// ErrUnknownElement 表示 id 不存在。
	ErrUnknownElement = errors.New("元素不存在")
	// ErrNoCanvas 表示尚未设置画布尺寸。
	ErrNoCanvas = errors.New("画布尺寸未设置")
)

// Bounds 是编辑器画布当前的像素包围盒尺寸。
type Bounds struct {
	Width  float64
	Height float64
}

// Options 配置编辑器。
type Options struct {
	Bounds     Bounds
	Typesetter layout.Typesetter
	Logger     *zap.Logger
}

// Editor 持有一个正在编辑的文档，是文档在编辑期间唯一的修改入口。
// 公开方法之间互斥；拖拽/缩放会话是针对单个元素的独占操作序列。
type Editor struct {
	mu         sync.Mutex
	doc        *document.Document
	caps       Capabilities
	selected   string
	bounds     Bounds
	gesture    *gesture
	typesetter layout.Typesetter
	log        *zap.Logger
}

// New 以 doc 的副本创建编辑器，doc 为 nil 时从空白横向文档开始。
func New(doc *document.Document, caps Capabilities, opts Options) *Editor {
	if doc == nil {
		doc = document.New(document.Landscape)
	} else {
		doc = doc.Clone()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Editor{
		doc:        doc,
		caps:       caps,
		bounds:     opts.Bounds,
		typesetter: opts.Typesetter,
		log:        log.Named("editor"),
	}
}

// Capabilities 返回编辑器的能力集合。
func (e *Editor) Capabilities() Capabilities { return e.caps }

// Snapshot 返回当前文档的深拷贝，用于保存。
func (e *Editor) Snapshot() *document.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// Selected 返回当前选中的元素 id，未选中时为空串。
func (e *Editor) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Add 按缺省样式添加一个元素，新元素位于最上层并被选中。
func (e *Editor) Add(kind document.Kind) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture != nil {
		return "", ErrDragInProgress
	}
	if !e.caps.Allows(kind) {
		return "", fmt.Errorf("%w: 添加 %s", ErrCapabilityDenied, kind)
	}
	el := document.NewElement(kind)
	if el == nil {
		return "", fmt.Errorf("未知的元素类型：%s", kind)
	}
	id := e.doc.Add(el)
	e.selected = id
	e.log.Debug("添加元素", zap.String("id", id), zap.String("kind", string(kind)))
	return id, nil
}

// Select 选中 id，空串表示取消选中。
func (e *Editor) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id != "" && e.doc.IndexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	e.selected = id
	return nil
}

// Remove 删除元素；删除的是选中元素时清除选中状态。
func (e *Editor) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture != nil {
		return ErrDragInProgress
	}
	if e.doc.Remove(id) && e.selected == id {
		e.selected = ""
	}
	return nil
}

// Update 合并字段到元素。未知 id 不做任何事；拖拽期间只允许修改正在拖拽的元素。
func (e *Editor) Update(id string, p document.Patch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture != nil && e.gesture.id != id {
		return ErrDragInProgress
	}
	e.doc.Update(id, p)
	return nil
}

// UpdateSelected 修改当前选中的元素。
func (e *Editor) UpdateSelected(p document.Patch) error {
	id := e.Selected()
	if id == "" {
		return ErrNoSelection
	}
	return e.Update(id, p)
}

// BringToFront 将元素移到最上层。
func (e *Editor) BringToFront(id string) error { return e.reorder(id, document.Front) }

// SendToBack 将元素移到最底层。
func (e *Editor) SendToBack(id string) error { return e.reorder(id, document.Back) }

func (e *Editor) reorder(id string, pos document.Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture != nil {
		return ErrDragInProgress
	}
	e.doc.Reorder(id, pos)
	return nil
}

// SetBackgroundColor 设置画布背景色。
func (e *Editor) SetBackgroundColor(color string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.doc.BackgroundColor = color
}

// SetBackgroundImage 设置背景图，空串表示移除。
func (e *Editor) SetBackgroundImage(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if src != "" && !e.caps.BackgroundImage {
		return fmt.Errorf("%w: 背景图", ErrCapabilityDenied)
	}
	e.doc.BackgroundImage = src
	return nil
}

// SetOrientation 切换画布方向，页面尺寸随之切换为对应方向。
// 元素坐标为百分比，无需调整。
func (e *Editor) SetOrientation(o document.Orientation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.caps.Orientation {
		return fmt.Errorf("%w: 切换方向", ErrCapabilityDenied)
	}
	o = o.Normalize()
	if o == e.doc.Orientation {
		return nil
	}
	e.doc.Orientation = o
	pw, ph := e.doc.PageSize.Width, e.doc.PageSize.Height
	if (o == document.Landscape) != (pw > ph) {
		e.doc.PageSize.Width, e.doc.PageSize.Height = ph, pw
	}
	return nil
}

// SetCanvasBounds 记录编辑器画布当前的像素尺寸（窗口缩放后需要重新设置）。
func (e *Editor) SetCanvasBounds(b Bounds) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bounds = b
}

// Canvas 以编辑器画布尺寸渲染当前文档。
func (e *Editor) Canvas(ctx binding.Context) *layout.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return layout.Build(e.doc, ctx, layout.BuildOptions{
		Surface:    layout.Surface{Width: e.bounds.Width, Height: e.bounds.Height},
		Mode:       layout.ModeEditor,
		Typesetter: e.typesetter,
		Logger:     e.log,
	})
}

// Preview 以给定宽度渲染紧凑预览，通常绑定来自尚未提交的表单。
func (e *Editor) Preview(ctx binding.Context, width float64) *layout.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return layout.Build(e.doc, ctx, layout.BuildOptions{
		Surface:    layout.Surface{Width: width},
		Mode:       layout.ModePreview,
		Typesetter: e.typesetter,
		Logger:     e.log,
	})
}
