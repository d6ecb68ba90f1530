package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// archive 在内存中按顺序写入 zip 条目。
type archive struct {
	buf bytes.Buffer
	zw  *zip.Writer
}

func newArchive() *archive {
	a := &archive{}
	a.zw = zip.NewWriter(&a.buf)
	return a
}

func (a *archive) add(index int, name string, format Format, data []byte) error {
	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     EntryName(index, name, format),
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (a *archive) close() ([]byte, error) {
	if err := a.zw.Close(); err != nil {
		return nil, err
	}
	return a.buf.Bytes(), nil
}

// EntryName 返回压缩包中第 index 个条目的文件名，序号保证唯一且与输入顺序一致。
func EntryName(index int, name string, format Format) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(name))
	clean = strings.Trim(clean, "-")
	if clean == "" {
		clean = "certificate"
	}
	return fmt.Sprintf("%03d-%s.%s", index+1, clean, format)
}
