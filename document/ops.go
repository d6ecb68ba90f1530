package document

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID 生成元素 id，测试中可替换。
var NewID = func() string { return uuid.NewString() }

// Position 是 Reorder 的目标位置。
type Position string

const (
	Front Position = "front"
	Back  Position = "back"
)

// Add 以新生成的唯一 id 追加元素，使其位于最上层，返回该 id。
func (d *Document) Add(el Element) string {
	if d == nil || el == nil {
		return ""
	}
	id := NewID()
	for d.IndexOf(id) >= 0 {
		id = NewID()
	}
	el.Base().ID = id
	d.Elements = append(d.Elements, el)
	return id
}

// Remove 删除匹配 id 的元素，返回是否删除。
func (d *Document) Remove(id string) bool {
	idx := d.IndexOf(id)
	if idx < 0 {
		return false
	}
	d.Elements = append(d.Elements[:idx], d.Elements[idx+1:]...)
	return true
}

// Update 将 patch 合并到 id 对应的元素。未知 id 不做任何事并返回 false。
func (d *Document) Update(id string, p Patch) bool {
	el := d.Find(id)
	if el == nil {
		return false
	}
	el.apply(p)
	return true
}

// Reorder 将元素移到列表末尾（front）或开头（back），其余元素相对顺序不变。
func (d *Document) Reorder(id string, pos Position) bool {
	idx := d.IndexOf(id)
	if idx < 0 {
		return false
	}
	el := d.Elements[idx]
	rest := make([]Element, 0, len(d.Elements))
	rest = append(rest, d.Elements[:idx]...)
	rest = append(rest, d.Elements[idx+1:]...)
	switch pos {
	case Back:
		d.Elements = append([]Element{el}, rest...)
	default:
		d.Elements = append(rest, el)
	}
	return true
}

// Find 返回 id 对应的元素，不存在时为 nil。
func (d *Document) Find(id string) Element {
	idx := d.IndexOf(id)
	if idx < 0 {
		return nil
	}
	return d.Elements[idx]
}

// IndexOf 返回 id 在绘制顺序中的位置，不存在时为 -1。
func (d *Document) IndexOf(id string) int {
	if d == nil || id == "" {
		return -1
	}
	for i, el := range d.Elements {
		if el != nil && el.Base().ID == id {
			return i
		}
	}
	return -1
}

// IDs 按绘制顺序返回全部元素 id。
func (d *Document) IDs() []string {
	if d == nil {
		return nil
	}
	ids := make([]string, 0, len(d.Elements))
	for _, el := range d.Elements {
		if el != nil {
			ids = append(ids, el.Base().ID)
		}
	}
	return ids
}

// Clone 深拷贝文档，副本与原文档互不影响。
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Elements = make([]Element, 0, len(d.Elements))
	for _, el := range d.Elements {
		if el != nil {
			out.Elements = append(out.Elements, el.clone())
		}
	}
	return &out
}

// Validate 检查元素 id 是否非空且唯一。
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: 文档为空", ErrMalformed)
	}
	seen := make(map[string]struct{}, len(d.Elements))
	for i, el := range d.Elements {
		if el == nil {
			return fmt.Errorf("第 %d 个元素为空", i)
		}
		id := el.Base().ID
		if id == "" {
			return fmt.Errorf("第 %d 个元素缺少 id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("元素 id %q 重复", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ensureIDs 为缺失或重复的 id 重新分配新值，保证 id 在文档内唯一。
func (d *Document) ensureIDs() {
	seen := make(map[string]struct{}, len(d.Elements))
	for _, el := range d.Elements {
		base := el.Base()
		if _, dup := seen[base.ID]; base.ID == "" || dup {
			base.ID = NewID()
			for {
				if _, taken := seen[base.ID]; !taken {
					break
				}
				base.ID = NewID()
			}
		}
		seen[base.ID] = struct{}{}
	}
}
