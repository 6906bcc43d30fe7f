package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MalasadaTech/masq-monitor/internal/logger"
	"github.com/MalasadaTech/masq-monitor/internal/tlp"
)

//go:embed templates/*.html
var builtinTemplates embed.FS

// Renderer writes assembled reports as self-contained HTML documents. Record
// templates are selected per record through the registry; the outer layout
// can be overridden per query or globally with an on-disk template file.
type Renderer struct {
	registry *Registry
	log      logger.Interface
	root     *template.Template
}

// NewRenderer parses the built-in templates and returns a ready renderer.
// A nil registry selects the built-in mappings; a nil logger disables
// logging.
func NewRenderer(registry *Registry, log logger.Interface) (*Renderer, error) {
	if registry == nil {
		registry = NewRegistry()
	}
	if log == nil {
		log = logger.NewNoOp()
	}

	root, err := template.New("report").
		Funcs(templateFuncs()).
		ParseFS(builtinTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in templates: %w", err)
	}

	return &Renderer{registry: registry, log: log, root: root}, nil
}

// reportPage is what the outer template executes against: the report plus
// one pre-rendered HTML block per record.
type reportPage struct {
	*Report
	Blocks []template.HTML
}

// Render writes the report as HTML to w. Blank lines are stripped from the
// output so conditional template sections leave no gaps.
func (r *Renderer) Render(w io.Writer, rep *Report) error {
	blocks := make([]template.HTML, 0, len(rep.Records))
	for _, rec := range rep.Records {
		name := r.registry.TemplateFor(rec)
		var buf bytes.Buffer
		if err := r.root.ExecuteTemplate(&buf, name, rec); err != nil {
			return fmt.Errorf("failed to render record template %s: %w", name, err)
		}
		blocks = append(blocks, template.HTML(buf.String()))
	}

	outer, outerName := r.outerTemplate(rep.TemplatePath)
	var page bytes.Buffer
	if err := outer.ExecuteTemplate(&page, outerName, reportPage{Report: rep, Blocks: blocks}); err != nil {
		return fmt.Errorf("failed to render report template: %w", err)
	}

	if _, err := io.WriteString(w, stripBlankLines(page.String())); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteFile renders the report into runDir using the canonical filename and
// returns the full path.
func (r *Renderer) WriteFile(runDir string, rep *Report) (string, error) {
	path := filepath.Join(runDir, Filename(rep.Name, filepath.Base(runDir), rep.TLPLevel))

	var buf bytes.Buffer
	if err := r.Render(&buf, rep); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	r.log.Info("report written", "path", path, "records", len(rep.Records))
	return path, nil
}

// outerTemplate resolves the outer layout: an on-disk override when one is
// configured and loadable, the built-in layout otherwise.
func (r *Renderer) outerTemplate(overridePath string) (*template.Template, string) {
	if overridePath == "" {
		return r.root, "report.html"
	}

	override, err := r.root.Clone()
	if err == nil {
		override, err = override.ParseFiles(overridePath)
	}
	if err != nil {
		r.log.Warn("failed to load template override, using built-in",
			"path", overridePath, "error", err)
		return r.root, "report.html"
	}
	return override, filepath.Base(overridePath)
}

func stripBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n") + "\n"
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"dig":      dig,
		"str":      asString,
		"coalesce": coalesce,
		"upper":    func(v any) string { return strings.ToUpper(asString(v)) },
		"tlpColor": tlpColor,
		"fmtTime":  func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
		"toJSON":   toJSON,
	}
}

// dig walks nested string-keyed maps and returns nil as soon as the path
// breaks, so templates never fault on missing or oddly shaped structure.
func dig(v any, keys ...string) any {
	current := v
	for _, key := range keys {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = node[key]
	}
	return current
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case template.HTML:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// coalesce returns the first non-empty value as a string, or "N/A" when all
// are empty.
func coalesce(vals ...any) string {
	for _, v := range vals {
		if s := asString(v); s != "" {
			return s
		}
	}
	return "N/A"
}

func tlpColor(level tlp.Level) string {
	switch level {
	case tlp.Red:
		return "#ff2b2b"
	case tlp.Amber:
		return "#ffc000"
	case tlp.Green:
		return "#33ff00"
	default:
		return "#ffffff"
	}
}

func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
