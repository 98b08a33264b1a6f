// Package ui serves the human-readable signal report. Reports are composed
// as markdown and rendered to HTML, so the same content is usable in the
// browser and in exported review documents.
package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/sirupsen/logrus"

	"govigil/domain/core"
	"govigil/domain/signal"
	"govigil/internal/exec"
	"govigil/ports"
)

// App serves the review-facing report surface
type App struct {
	router *chi.Mux
	exec   *exec.Router
	log    *logrus.Entry

	mu    sync.RWMutex
	table *signal.CaseTable
}

// NewApp creates the report application around an execution router
func NewApp(execRouter *exec.Router) *App {
	app := &App{
		router: chi.NewRouter(),
		exec:   execRouter,
		log:    logrus.WithField("component", "ui"),
	}
	app.router.Use(middleware.RequestID)
	app.router.Use(middleware.Recoverer)
	app.setupRoutes()
	return app
}

// SetTable swaps the active case table snapshot
func (a *App) SetTable(table *signal.CaseTable) {
	a.mu.Lock()
	a.table = table
	a.mu.Unlock()
}

func (a *App) currentTable() *signal.CaseTable {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.table
}

// Handler returns the chi router for serving and tests
func (a *App) Handler() http.Handler { return a.router }

func (a *App) setupRoutes() {
	a.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	a.router.Get("/report", a.handleReportHTML)
	a.router.Get("/report.md", a.handleReportMarkdown)
}

func (a *App) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	md, status := a.buildReport(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(renderHTML(md))
}

func (a *App) handleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	md, status := a.buildReport(r)
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(md))
}

// buildReport assembles the markdown report from the lazy top-K pipeline.
// A budget overrun still renders whatever completed, flagged as partial.
func (a *App) buildReport(r *http.Request) (string, int) {
	table := a.currentTable()
	if table == nil {
		return "# Signal Report\n\nNo case table loaded.\n", http.StatusServiceUnavailable
	}

	topK := 10
	if v := r.URL.Query().Get("top_k"); v != "" {
		fmt.Sscanf(v, "%d", &topK)
	}

	result, err := a.exec.Execute(r.Context(), ports.ExecRequest{
		Op:     signal.OpTopSignals,
		Params: map[string]interface{}{"top_k": topK},
		Table:  table,
	})
	partial := false
	if err != nil {
		payload, ok := core.PartialResult(err)
		if !ok {
			a.log.WithError(err).Warn("report generation failed")
			return fmt.Sprintf("# Signal Report\n\nReport generation failed: %s\n", err), http.StatusInternalServerError
		}
		partial = true
		result = payload
	}

	metrics := coerceMetrics(result)
	return composeReport(table, metrics, partial), http.StatusOK
}

// coerceMetrics accepts the direct result shape as well as entries rehydrated
// from the persistent cache store, which arrive as generic JSON values after
// a restart.
func coerceMetrics(result interface{}) []*signal.SignalMetrics {
	switch v := result.(type) {
	case nil:
		return nil
	case []*signal.SignalMetrics:
		return v
	case []signal.SignalMetrics:
		out := make([]*signal.SignalMetrics, len(v))
		for i := range v {
			out[i] = &v[i]
		}
		return out
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var out []*signal.SignalMetrics
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil
		}
		return out
	}
}

func composeReport(table *signal.CaseTable, metrics []*signal.SignalMetrics, partial bool) string {
	var b strings.Builder
	b.WriteString("# Signal Report\n\n")
	fmt.Fprintf(&b, "Dataset version `%s`, %d cases. Generated %s.\n\n",
		table.Version, table.Size(), time.Now().UTC().Format(time.RFC3339))
	if partial {
		b.WriteString("**Partial report:** the computation budget ran out; only the signals below completed.\n\n")
	}
	if len(metrics) == 0 {
		b.WriteString("No signals to report.\n")
		return b.String()
	}

	b.WriteString("| # | Drug | Reaction | Cases | PRR (95% CI) | ROR (95% CI) | EBGM (EB05) | IC (IC025) | Flag |\n")
	b.WriteString("|---|------|----------|-------|--------------|--------------|-------------|------------|------|\n")
	for i, m := range metrics {
		flag := ""
		if m.SignalFlag {
			flag = "SIGNAL"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %d | %s | %s | %s | %s | %s |\n",
			i+1, m.Drug, m.Reaction, m.Cell.A,
			formatEstimate(m.PRR), formatEstimate(m.ROR),
			formatLowerBound(m.EBGM), formatLowerBound(m.IC), flag)
	}

	b.WriteString("\n## Reading the numbers\n\n")
	b.WriteString("PRR and ROR compare the reporting rate of the reaction with the drug against the rest of the dataset. ")
	b.WriteString("EBGM shrinks small-count estimates toward the null; EB05 is its conservative lower bound. ")
	b.WriteString("IC025 above zero is the conventional Bayesian screening criterion. ")
	b.WriteString("A flag means the configured thresholds are all met and the pair deserves clinical review.\n")
	return b.String()
}

func formatEstimate(e signal.Estimate) string {
	if !e.Computable {
		return "n/a"
	}
	return fmt.Sprintf("%.2f (%.2f-%.2f)", e.Value, e.Lower, e.Upper)
}

func formatLowerBound(e signal.Estimate) string {
	if !e.Computable {
		return "n/a"
	}
	return fmt.Sprintf("%.2f (%.2f)", e.Value, e.Lower)
}

// renderHTML converts the markdown report into a standalone HTML page
func renderHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	body := markdown.Render(doc, renderer)

	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Signal Report</title>\n")
	page.WriteString("<style>body{font-family:sans-serif;max-width:72rem;margin:2rem auto;padding:0 1rem}table{border-collapse:collapse}th,td{border:1px solid #ccc;padding:0.3rem 0.6rem;text-align:left}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body)
	page.WriteString("</body>\n</html>\n")
	return []byte(page.String())
}
