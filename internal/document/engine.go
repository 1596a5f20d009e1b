// Package document assembles the final HTML response for a rendered page.
//
// The engine is a pure string-to-string transformation over a static shell
// produced by the client build. The shell carries two marker comments:
//
//	<!--app-html-->  replaced with the server-rendered fragment
//	<!--app-data-->  replaced with a <script> assigning the initial data
//
// Head tags are inserted before </head>, extra attributes are merged into the
// opening <html> and <body> tags, and when a client entry resolves from the
// build manifest the shell's development script and stylesheet tags are
// swapped for the production bundle. All positions are computed against the
// unmodified shell before anything is inserted, so render output that happens
// to contain marker text is never substituted a second time.
package document

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/conneroisu/ssrgate/internal/renderer"
)

const (
	// FragmentMarker is replaced with the rendered HTML fragment.
	FragmentMarker = "<!--app-html-->"
	// DataMarker is replaced with the initial-data script.
	DataMarker = "<!--app-data-->"
	// DefaultStateVariable is the global the initial data is assigned to.
	DefaultStateVariable = "__INITIAL_DATA__"
	// ContentTypeHTML is added when the render result sets no content type.
	ContentTypeHTML = "text/html; charset=utf-8"
)

// ClientEntry is a resolved client bundle.
type ClientEntry struct {
	Src string
	CSS []string
}

// EntryResolver resolves a client entry name to its bundle assets.
type EntryResolver func(name string) (ClientEntry, bool)

// Document is an assembled response.
type Document struct {
	HTML    string
	Status  int
	Headers map[string]string
}

// Options configures an Engine.
type Options struct {
	// StateVariable is the window property the initial data is assigned to.
	StateVariable string
}

// Engine assembles documents. It is stateless and safe for concurrent use.
type Engine struct {
	stateVariable string
}

// NewEngine creates a document engine.
func NewEngine(opts Options) *Engine {
	if opts.StateVariable == "" {
		opts.StateVariable = DefaultStateVariable
	}
	return &Engine{stateVariable: opts.StateVariable}
}

// edit replaces shell[start:end] with text. Insertions have start == end.
type edit struct {
	start, end int
	text       string
	seq        int
}

// Assemble patches shell with result. resolve may be nil, in which case the
// shell's own script and stylesheet tags are kept.
func (e *Engine) Assemble(shell string, result *renderer.Result, resolve EntryResolver) (*Document, error) {
	if result == nil {
		result = &renderer.Result{}
	}

	state, err := e.stateScript(result.InitialData)
	if err != nil {
		return nil, err
	}

	l := scanShell(shell)
	var edits []edit
	add := func(start, end int, text string) {
		edits = append(edits, edit{start: start, end: end, text: text, seq: len(edits)})
	}

	headPos := headInsertPos(l)
	tailPos := tailInsertPos(l, len(shell))

	var entry ClientEntry
	var haveEntry bool
	if result.EntryClient != "" && resolve != nil {
		entry, haveEntry = resolve(result.EntryClient)
	}

	if haveEntry {
		for _, s := range l.modules {
			s = lineSpan(shell, s)
			add(s.start, s.end, "")
		}
		for _, s := range l.styles {
			s = lineSpan(shell, s)
			add(s.start, s.end, "")
		}
		if links := stylesheetLinks(entry.CSS); links != "" {
			add(headPos, headPos, links)
		}
	}

	if head := result.Head; head != nil {
		if head.HeadTags != "" {
			add(headPos, headPos, head.HeadTags)
		}
		if head.HTMLAttributes != "" && l.htmlOpen != nil {
			add(l.htmlOpen.start, l.htmlOpen.end, mergeStartTag(l.htmlOpen, head.HTMLAttributes))
		}
		if head.BodyAttributes != "" && l.bodyOpen != nil {
			add(l.bodyOpen.start, l.bodyOpen.end, mergeStartTag(l.bodyOpen, head.BodyAttributes))
		}
	}

	if l.data >= 0 {
		add(l.data, l.data+len(DataMarker), state)
	} else {
		add(tailPos, tailPos, state)
	}

	if l.fragment >= 0 {
		add(l.fragment, l.fragment+len(FragmentMarker), result.HTML)
	}

	if haveEntry && entry.Src != "" {
		add(tailPos, tailPos, moduleScript(entry.Src))
	}

	status := result.Status
	if status == 0 {
		status = 200
	}

	return &Document{
		HTML:    applyEdits(shell, edits),
		Status:  status,
		Headers: withContentType(result.Headers),
	}, nil
}

// stateScript serializes data into the initial-data script. Every '<' in the
// JSON is escaped so string values cannot close the script element.
func (e *Engine) stateScript(data any) (string, error) {
	payload := []byte("{}")
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("serializing initial data: %w", err)
		}
		payload = b
	}
	escaped := strings.ReplaceAll(string(payload), "<", `\u003c`)
	return "<script>window." + e.stateVariable + "=" + escaped + "</script>", nil
}

func applyEdits(shell string, edits []edit) string {
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].start != edits[j].start {
			return edits[i].start < edits[j].start
		}
		return edits[i].seq < edits[j].seq
	})

	var b strings.Builder
	b.Grow(len(shell) + 256)
	cursor := 0
	for _, ed := range edits {
		if ed.start < cursor {
			// overlaps an earlier edit; the earlier one wins
			continue
		}
		b.WriteString(shell[cursor:ed.start])
		b.WriteString(ed.text)
		cursor = ed.end
	}
	b.WriteString(shell[cursor:])
	return b.String()
}

// headInsertPos is where stylesheets and head tags go: before </head>, else
// before <body>, else the start of the document.
func headInsertPos(l layout) int {
	switch {
	case l.headClose >= 0:
		return l.headClose
	case l.bodyOpen != nil:
		return l.bodyOpen.start
	default:
		return 0
	}
}

// tailInsertPos is where scripts go: before </body>, else the end.
func tailInsertPos(l layout, size int) int {
	if l.bodyClose >= 0 {
		return l.bodyClose
	}
	return size
}

func stylesheetLinks(hrefs []string) string {
	var b strings.Builder
	for _, href := range hrefs {
		if href == "" {
			continue
		}
		b.WriteString(`<link rel="stylesheet" href="`)
		b.WriteString(html.EscapeString(href))
		b.WriteString(`">`)
	}
	return b.String()
}

func moduleScript(src string) string {
	return `<script type="module" src="` + html.EscapeString(src) + `" crossorigin></script>`
}

func withContentType(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	hasType := false
	for k, v := range headers {
		out[k] = v
		if strings.EqualFold(k, "Content-Type") {
			hasType = true
		}
	}
	if !hasType {
		out["Content-Type"] = ContentTypeHTML
	}
	return out
}
