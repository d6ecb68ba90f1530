package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// WriteDebugJSON 将布局结果输出为 JSON，便于调试或对比不同渲染面的结果。
func WriteDebugJSON(res *Result, path string) error {
	if res == nil {
		return nil
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化布局结果失败: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteOutline 以每行一个节点的形式输出结果概要。
func WriteOutline(w io.Writer, res *Result) error {
	if res == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "surface %.0fx%.0f scale=%.3f mode=%s nodes=%d\n", res.Width, res.Height, res.Scale, res.Mode, len(res.Nodes)); err != nil {
		return err
	}
	for i, n := range res.Nodes {
		label := ""
		switch {
		case n.Text != nil:
			label = fmt.Sprintf("%q", n.Text.Content)
		case n.Image != nil:
			label = n.Image.Src
		case n.Shape != nil:
			label = string(n.Shape.Shape)
		case n.QRCode != nil:
			label = n.QRCode.Payload
		case n.Placeholder != nil:
			label = n.Placeholder.Label
		}
		if _, err := fmt.Fprintf(w, "%2d %-11s %-12s (%.1f,%.1f %.1fx%.1f) %s\n", i, n.Kind, n.ElementID, n.Frame.X, n.Frame.Y, n.Frame.Width, n.Frame.Height, label); err != nil {
			return err
		}
	}
	return nil
}
