package binding

import (
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// 可识别的占位符名称。
const (
	RecipientName    = "recipient_name"
	CourseName       = "course_name"
	IssueDate        = "issue_date"
	OrganizationName = "organization_name"
	CertificateID    = "certificate_id"
	ExpiryDate       = "expiry_date"
	CertificateType  = "certificate_type"
)

// Tokens 列出全部可识别的占位符。
var Tokens = []string{
	RecipientName,
	CourseName,
	IssueDate,
	OrganizationName,
	CertificateID,
	ExpiryDate,
	CertificateType,
}

var known = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Tokens))
	for _, t := range Tokens {
		m[t] = struct{}{}
	}
	return m
}()

// IsKnown 判断 name 是否为可识别的占位符。
func IsKnown(name string) bool {
	_, ok := known[name]
	return ok
}

// Context 是单次渲染的占位符绑定：token 名称到字符串值。
type Context map[string]string

// With 返回包含额外绑定的新 Context，原 Context 不变。
func (c Context) With(token, value string) Context {
	out := make(Context, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[token] = value
	return out
}

// Result 是一次替换的结果，Unresolved 记录未能解析、被原样保留的占位符名称。
type Result struct {
	Text       string
	Unresolved []string
}

// Interpolate 将文本中的 {{token}} 替换为 ctx 中的值。
// 只对原始模板做一次扫描，替换结果不会被再次解析；
// 未识别或未绑定的占位符原样保留，作为数据缺失的可见证据。
func Interpolate(text string, ctx Context) Result {
	if !strings.Contains(text, "{{") {
		return Result{Text: text}
	}
	var unresolved []string
	seen := map[string]struct{}{}
	out := tokenPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := tokenPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		name := groups[1]
		if IsKnown(name) {
			if val, ok := ctx[name]; ok {
				return val
			}
		}
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			unresolved = append(unresolved, name)
		}
		return match
	})
	return Result{Text: out, Unresolved: unresolved}
}

// Placeholders 返回文本中出现的占位符名称（去重、排序）。
func Placeholders(text string) []string {
	matches := tokenPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	set := map[string]struct{}{}
	for _, m := range matches {
		set[m[1]] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
