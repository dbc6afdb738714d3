package outfmt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"text/tabwriter"
)

// Formatter handles output formatting for commands.
type Formatter struct {
	ctx       context.Context
	out       io.Writer
	errOut    io.Writer
	tabWriter *tabwriter.Writer
}

// NewFormatter creates a new Formatter
func NewFormatter(ctx context.Context, out, errOut io.Writer) *Formatter {
	return &Formatter{
		ctx:       ctx,
		out:       out,
		errOut:    errOut,
		tabWriter: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0),
	}
}

// Output writes data as JSON, JSONL, or through the template in context.
// In text mode without a template it writes nothing; callers draw tables.
func (f *Formatter) Output(data any) error {
	query := GetQuery(f.ctx)
	if tmpl := GetTemplate(f.ctx); tmpl != "" {
		filtered, err := ApplyQuery(data, query)
		if err != nil {
			return err
		}
		// Templates address fields by their JSON names.
		generic, err := toJSONValue(filtered)
		if err != nil {
			return err
		}
		return WriteTemplate(f.out, generic, tmpl)
	}
	if !IsJSON(f.ctx) {
		return nil
	}
	if IsJSONL(f.ctx) && query == "" {
		return f.writeLines(data)
	}
	return WriteJSONFiltered(f.out, data, query, IsCompact(f.ctx))
}

// writeLines emits one compact JSON value per slice element.
func (f *Formatter) writeLines(data any) error {
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return WriteJSONMaybeCompact(f.out, data, true)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := WriteJSONMaybeCompact(f.out, rv.Index(i).Interface(), true); err != nil {
			return err
		}
	}
	return nil
}

// StartTable writes table headers. Returns true if in text mode.
func (f *Formatter) StartTable(headers []string) bool {
	if IsJSON(f.ctx) || GetTemplate(f.ctx) != "" {
		return false
	}
	f.Row(headers...)
	return true
}

// Row writes a single row to the table.
func (f *Formatter) Row(columns ...string) {
	for i, col := range columns {
		if i > 0 {
			_, _ = fmt.Fprint(f.tabWriter, "\t")
		}
		_, _ = fmt.Fprint(f.tabWriter, col)
	}
	_, _ = fmt.Fprintln(f.tabWriter)
}

// EndTable flushes the table output.
func (f *Formatter) EndTable() error {
	return f.tabWriter.Flush()
}

// Empty writes a message to stderr indicating no results.
func (f *Formatter) Empty(message string) {
	_, _ = fmt.Fprintln(f.errOut, message)
}

func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
