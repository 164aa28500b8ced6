package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"vqtlbrowser/internal/errors"
)

// templateSet parses page templates from the embedded files or, when a
// directory is configured, from disk. Disk templates are re-parsed on each
// render in debug mode so edits show up without a restart.
type templateSet struct {
	dir    string
	reload bool
	parsed *template.Template
}

var funcMap = template.FuncMap{
	"num": func(v float64) string {
		if math.IsNaN(v) {
			return "NA"
		}
		return fmt.Sprintf("%.4g", v)
	},
	"sci": func(v float64) string {
		if math.IsNaN(v) {
			return "NA"
		}
		return fmt.Sprintf("%.3e", v)
	},
	"json": func(v interface{}) (template.JS, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return template.JS(raw), nil
	},
}

func newTemplateSet(dir string, debug bool) (*templateSet, error) {
	ts := &templateSet{dir: dir, reload: dir != "" && debug}
	parsed, err := ts.parse()
	if err != nil {
		return nil, err
	}
	ts.parsed = parsed
	return ts, nil
}

func (ts *templateSet) parse() (*template.Template, error) {
	var source fs.FS = embeddedFiles
	pattern := "templates/*.html"
	if ts.dir != "" {
		source = os.DirFS(ts.dir)
		pattern = "*.html"
	}
	t, err := template.New("").Funcs(funcMap).ParseFS(source, pattern)
	if err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeConfigInvalid, err), "failed to parse templates")
	}
	return t, nil
}

// renderTemplate executes a template into a buffer first so that a failed
// render never leaves a half-written page
func (a *App) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	t := a.templates.parsed
	if a.templates.reload {
		reloaded, err := a.templates.parse()
		if err != nil {
			log.Errorf("[Server] template reload failed, keeping previous templates: %v", err)
		} else {
			t = reloaded
		}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		log.Errorf("[Server] template error for %s: %v", name, err)
		writeError(w, errors.Wrapf(errors.WithCode(errors.CodeInternalError, err), "failed to render %s", name))
		return
	}
	if !strings.Contains(buf.String(), "</html>") {
		log.Warnf("[Server] rendered template %s appears truncated", name)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Errorf("[Server] error writing template response: %v", err)
	}
}
