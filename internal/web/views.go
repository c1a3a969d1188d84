package web

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/reportsheets/internal/core"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}` +
	`table{border-collapse:collapse;margin:1rem 0;width:100%}` +
	`th,td{border:1px solid #d1d5db;padding:.4rem .6rem;text-align:left}` +
	`th{background:#f3f4f6}.code{color:#6b7280;font-size:.9rem}` +
	`.valid{color:#047857}`

// pageWriter accumulates the first write error so markup can be emitted
// without checking every call.
type pageWriter struct {
	w   io.Writer
	err error
}

func (p *pageWriter) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *pageWriter) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *pageWriter) open(title string) {
	p.raw(`<!DOCTYPE html><html lang="es"><head><meta charset="utf-8"><title>`)
	p.text(title)
	p.raw(`</title><style>` + pageStyle + `</style></head><body>`)
}

func (p *pageWriter) close() {
	p.raw(`</body></html>`)
}

func (p *pageWriter) table(headers []string, rows [][]string) {
	p.raw(`<table><thead><tr>`)
	for _, h := range headers {
		p.raw(`<th>`)
		p.text(h)
		p.raw(`</th>`)
	}
	p.raw(`</tr></thead><tbody>`)
	for _, row := range rows {
		p.raw(`<tr>`)
		for _, cell := range row {
			p.raw(`<td>`)
			p.text(cell)
			p.raw(`</td>`)
		}
		p.raw(`</tr>`)
	}
	p.raw(`</tbody></table>`)
}

// ErrorPage renders a user message as a standalone page.
func ErrorPage(msg core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &pageWriter{w: w}
		p.open("Error")
		p.raw(`<h1>`)
		p.text(msg.Message)
		p.raw(`</h1>`)
		if msg.Action != "" {
			p.raw(`<p>`)
			p.text(msg.Action)
			p.raw(`</p>`)
		}
		p.raw(`<p class="code">Código: `)
		p.text(msg.Code)
		p.raw(`</p>`)
		p.close()
		return p.err
	})
}

// ErrorLogPage renders the problems saved for a refused upload.
func ErrorLogPage(log *core.ErrorLog) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &pageWriter{w: w}
		p.open("Errores de carga - " + log.TemplateName)

		p.raw(`<h1>Errores de carga</h1><p>Plantilla: <strong>`)
		p.text(log.TemplateName)
		p.raw(`</strong>`)
		if log.FileName != "" {
			p.raw(` &middot; Archivo: <strong>`)
			p.text(log.FileName)
			p.raw(`</strong>`)
		}
		p.raw(`</p><p class="code">`)
		p.text(fmt.Sprintf("%d problema(s) registrados el %s UTC",
			log.Total(), log.CreatedAt.UTC().Format("2006-01-02 15:04:05")))
		p.raw(`</p>`)

		if len(log.Columns) > 0 {
			p.raw(`<h2>Columnas no reconocidas</h2>`)
			rows := make([][]string, len(log.Columns))
			for i, c := range log.Columns {
				rows[i] = []string{c.Column, c.Cell, c.Message}
			}
			p.table([]string{"Columna", "Celda", "Mensaje"}, rows)
		}
		if len(log.ValidColumns) > 0 {
			p.raw(`<p class="valid">Columnas válidas: `)
			p.text(strings.Join(log.ValidColumns, ", "))
			p.raw(`</p>`)
		}

		if len(log.Rows) > 0 {
			p.raw(`<h2>Registros rechazados</h2>`)
			rows := make([][]string, len(log.Rows))
			for i, r := range log.Rows {
				rows[i] = []string{r.Column, strconv.Itoa(r.Register), r.Message}
			}
			p.table([]string{"Columna", "Registro", "Mensaje"}, rows)
		}

		p.close()
		return p.err
	})
}
