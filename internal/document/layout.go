package document

import (
	"strings"

	"golang.org/x/net/html"
)

// span is a half-open byte range [start, end) of the shell.
type span struct {
	start, end int
}

// startTag is an opening tag located in the shell.
type startTag struct {
	span
	name  string
	attrs []html.Attribute
	self  bool
}

// layout records where the pieces the engine cares about sit in a shell.
// Every offset refers to the unmodified shell text.
type layout struct {
	htmlOpen  *startTag
	bodyOpen  *startTag
	headClose int // offset of "</head>", -1 when absent
	bodyClose int // offset of "</body>", -1 when absent
	fragment  int // offset of the fragment marker, -1 when absent
	data      int // offset of the data marker, -1 when absent
	modules   []span
	styles    []span
}

// scanShell tokenizes shell and records tag positions. Raw token lengths are
// summed so offsets stay exact even for malformed markup, and marker
// comments are only recognized outside raw-text elements such as <script>.
func scanShell(shell string) layout {
	l := layout{headClose: -1, bodyClose: -1, fragment: -1, data: -1}

	z := html.NewTokenizer(strings.NewReader(shell))
	offset := 0
	moduleStart := -1

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		start, end := offset, offset+len(raw)
		offset = end

		switch tt {
		case html.CommentToken:
			switch string(raw) {
			case FragmentMarker:
				if l.fragment < 0 {
					l.fragment = start
				}
			case DataMarker:
				if l.data < 0 {
					l.data = start
				}
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tag := readStartTag(z, span{start, end}, tt == html.SelfClosingTagToken)
			switch tag.name {
			case "html":
				if l.htmlOpen == nil {
					l.htmlOpen = &tag
				}
			case "body":
				if l.bodyOpen == nil {
					l.bodyOpen = &tag
				}
			case "script":
				if isModuleScript(tag.attrs) {
					if tag.self {
						l.modules = append(l.modules, tag.span)
					} else {
						moduleStart = start
					}
				}
			case "link":
				if isStylesheet(tag.attrs) {
					l.styles = append(l.styles, tag.span)
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "head":
				if l.headClose < 0 {
					l.headClose = start
				}
			case "body":
				// last </body> wins
				l.bodyClose = start
			case "script":
				if moduleStart >= 0 {
					l.modules = append(l.modules, span{moduleStart, end})
					moduleStart = -1
				}
			}
		}
	}

	return l
}

func readStartTag(z *html.Tokenizer, s span, self bool) startTag {
	name, hasAttr := z.TagName()
	tag := startTag{span: s, name: string(name), self: self}
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		tag.attrs = append(tag.attrs, html.Attribute{Key: string(key), Val: string(val)})
	}
	return tag
}

func isModuleScript(attrs []html.Attribute) bool {
	for _, a := range attrs {
		if a.Key == "type" && strings.EqualFold(strings.TrimSpace(a.Val), "module") {
			return true
		}
	}
	return false
}

func isStylesheet(attrs []html.Attribute) bool {
	for _, a := range attrs {
		if a.Key != "rel" {
			continue
		}
		for _, rel := range strings.Fields(a.Val) {
			if strings.EqualFold(rel, "stylesheet") {
				return true
			}
		}
	}
	return false
}

// parseAttributes reads an attribute list such as `lang="en" class="dark"`.
func parseAttributes(s string) []html.Attribute {
	z := html.NewTokenizer(strings.NewReader("<x " + s + ">"))
	if z.Next() != html.StartTagToken {
		return nil
	}
	return readStartTag(z, span{}, false).attrs
}

// mergeStartTag rebuilds tag with extra attributes. Attributes named in
// extra replace the shell's own.
func mergeStartTag(tag *startTag, extra string) string {
	added := parseAttributes(extra)
	overridden := make(map[string]bool, len(added))
	for _, a := range added {
		overridden[a.Key] = true
	}

	var b strings.Builder
	b.WriteString("<")
	b.WriteString(tag.name)
	for _, a := range tag.attrs {
		if overridden[a.Key] {
			continue
		}
		writeAttr(&b, a)
	}
	for _, a := range added {
		writeAttr(&b, a)
	}
	if tag.self {
		b.WriteString(" /")
	}
	b.WriteString(">")
	return b.String()
}

func writeAttr(b *strings.Builder, a html.Attribute) {
	b.WriteString(" ")
	b.WriteString(a.Key)
	if a.Val != "" {
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteString(`"`)
	}
}

// lineSpan widens s to cover its whole line when nothing but whitespace
// shares the line, so removed tags do not leave blank lines behind.
func lineSpan(shell string, s span) span {
	lineStart := strings.LastIndexByte(shell[:s.start], '\n') + 1
	if strings.TrimSpace(shell[lineStart:s.start]) != "" {
		return s
	}
	rest := shell[s.end:]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 || strings.TrimSpace(rest[:nl]) != "" {
		return s
	}
	return span{lineStart, s.end + nl + 1}
}
