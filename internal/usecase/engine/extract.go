package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/usecase/matcher"
)

const defaultListName = "rows"

// extract never fails: a value that cannot be read becomes "".
func (e *Engine) extract(ctx context.Context, r *run, a entity.Extract) {
	lines := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		if item.Name == "" {
			continue
		}
		value := e.extractItem(r, item)
		r.vars[item.Name] = value
		lines = append(lines, item.Name+": "+value)
	}
	text := strings.Join(lines, "\n")
	if a.Copy {
		e.copy(r, text)
	}
	if a.Present && text != "" {
		e.notify(ctx, output.NoticeInfo, text)
	}
}

func (e *Engine) extractItem(r *run, item entity.ExtractItem) string {
	if item.From == nil {
		return e.globalValue(item.Source)
	}
	el, err := e.matcher.FindOne(*item.From, matcher.Options{})
	if err != nil {
		r.logger.Warn("Extract selector invalid", "name", item.Name, "error", err)
		return ""
	}
	return readValue(el, item.Attribute)
}

func (e *Engine) globalValue(src entity.GlobalSource) string {
	switch src {
	case entity.SourceTitle:
		return e.page.Title()
	case entity.SourceURL:
		return e.page.Location().Href
	case entity.SourceHost:
		return e.page.Location().Host
	case entity.SourcePath:
		return e.page.Location().Path
	case entity.SourceUserAgent:
		return e.page.UserAgent()
	case entity.SourceTimestamp:
		return e.cfg.Now().UTC().Format(time.RFC3339)
	}
	return ""
}

// readValue is an element's trimmed text, or attr when set. A nil element
// reads as "".
func readValue(el output.Element, attr string) string {
	if el == nil {
		return ""
	}
	if attr != "" {
		v, _ := el.Attribute(attr)
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(el.TextContent())
}

// extractList reads one row per List match, in document order, capped at
// Limit when positive.
func (e *Engine) extractList(ctx context.Context, r *run, a entity.ExtractList) error {
	els, err := e.matcher.FindAll(a.List, matcher.Options{})
	if err != nil {
		return err
	}
	if a.Limit > 0 && len(els) > a.Limit {
		els = els[:a.Limit]
	}

	rows := make([]map[string]any, 0, len(els))
	for _, el := range els {
		row := make(map[string]any, len(a.Fields))
		for _, f := range a.Fields {
			cell := el
			if f.Target != nil {
				cell, err = e.matcher.FindOne(*f.Target, matcher.Options{Root: el})
				if err != nil {
					return fmt.Errorf("field %s: %w", f.Name, err)
				}
			}
			row[f.Name] = readValue(cell, f.Attribute)
		}
		rows = append(rows, row)
	}

	name := a.Name
	if name == "" {
		name = defaultListName
	}
	r.vars[name] = rows
	r.logger.Debug("List extracted", "name", name, "rows", len(rows))

	if !a.Copy && !a.Present {
		return nil
	}
	text, err := formatTable(a.Fields, rows, a.Format)
	if err != nil {
		r.logger.Warn("List not formatted", "name", name, "error", err)
		return nil
	}
	if a.Copy {
		e.copy(r, text)
	}
	if a.Present {
		e.notify(ctx, output.NoticeInfo, fmt.Sprintf("Extracted %d rows\n%s", len(rows), text))
	}
	return nil
}

// formatTable renders a header line plus one line per row, as TSV unless
// format is "csv".
func formatTable(fields []entity.ListField, rows []map[string]any, format string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	switch strings.ToLower(format) {
	case "", "tsv":
		w.Comma = '\t'
	case "csv":
	default:
		return "", fmt.Errorf("unknown list format %q", format)
	}

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, row := range rows {
		record := make([]string, len(fields))
		for i, f := range fields {
			record[i], _ = row[f.Name].(string)
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func (e *Engine) copy(r *run, text string) {
	if e.clipboard == nil {
		r.logger.Debug("No clipboard, copy skipped")
		return
	}
	if err := e.clipboard.WriteText(text); err != nil {
		r.logger.Warn("Clipboard write failed", "error", err)
	}
}
