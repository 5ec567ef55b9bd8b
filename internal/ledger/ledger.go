package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"inventaire/internal/faults"
)

// utf8BOM keeps the CSV openable in spreadsheet programs that guess the
// encoding from the first bytes.
const utf8BOM = "\ufeff"

const (
	writeRetryAttempts = 3
	writeRetryDelay    = 500 * time.Millisecond
)

// Options carries the CSV formatting settings from the configuration.
type Options struct {
	Separator    string
	Decimal      string
	IncludeImage bool
	ExtraColumns []string
}

func (o Options) separator() rune {
	if o.Separator == "" {
		return ','
	}
	return []rune(o.Separator)[0]
}

// Ledger is one folder's inventory CSV, loaded in memory and kept in sync
// with the file through Append and Rewrite.
type Ledger struct {
	path    string
	opts    Options
	columns []string
	rows    []Row

	// sleep is swapped out by tests to keep retries fast.
	sleep func(time.Duration)
}

// PathFor returns the ledger location for a folder: a CSV named after the
// folder, stored inside it.
func PathFor(folder string) string {
	return filepath.Join(folder, filepath.Base(folder)+".csv")
}

// CounterPathFor returns the ledger location used by target-counting runs.
func CounterPathFor(folder string) string {
	return filepath.Join(folder, filepath.Base(folder)+"_compteur.csv")
}

// Open loads the ledger at path, creating an empty in-memory ledger when the
// file does not exist yet (a normal first-run state, not an error). A file
// that exists but cannot be parsed, or that lacks the Fichier Original
// column, fails with ErrFormat. Legacy files without an ID column are
// upgraded in place: ids are backfilled 1..n and the file rewritten.
func Open(path string, opts Options) (*Ledger, error) {
	l := &Ledger{path: path, opts: opts, sleep: time.Sleep}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.columns = defaultColumns(opts)
			return l, nil
		}
		return nil, faults.Wrap(faults.ErrIO, "ledger", "open", path, err)
	}

	content := strings.TrimPrefix(string(data), utf8BOM)
	if strings.TrimSpace(content) == "" {
		l.columns = defaultColumns(opts)
		return l, nil
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = opts.separator()
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, faults.Wrap(faults.ErrFormat, "ledger", "parse", path, err)
	}
	columns := make([]string, len(header))
	hasID, hasFichier := false, false
	for i, name := range header {
		name = strings.TrimSpace(name)
		columns[i] = name
		switch name {
		case ColID:
			hasID = true
		case ColFichier:
			hasFichier = true
		}
	}
	if !hasFichier {
		return nil, faults.Wrap(faults.ErrFormat, "ledger", "parse",
			fmt.Sprintf("%s: missing required column %q", path, ColFichier), nil)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, faults.Wrap(faults.ErrFormat, "ledger", "parse", path, err)
		}
		var row Row
		for i, value := range record {
			if i >= len(columns) {
				break
			}
			row.SetField(columns[i], value)
		}
		rows = append(rows, row)
	}

	l.columns = columns
	l.rows = rows

	if !hasID {
		// Ledger written by an old version: ids were implicit row numbers.
		l.columns = append([]string{ColID}, columns...)
		for i := range l.rows {
			l.rows[i].ID = i + 1
		}
		if err := l.Rewrite(l.rows); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func defaultColumns(opts Options) []string {
	columns := make([]string, 0, len(knownColumns)+len(opts.ExtraColumns))
	for _, column := range knownColumns {
		if column == ColImage && !opts.IncludeImage {
			continue
		}
		columns = append(columns, column)
	}
	for _, extra := range opts.ExtraColumns {
		extra = strings.TrimSpace(extra)
		if extra != "" && !contains(columns, extra) {
			columns = append(columns, extra)
		}
	}
	return columns
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

// Path returns the backing file location.
func (l *Ledger) Path() string { return l.path }

// Columns returns the header in file order.
func (l *Ledger) Columns() []string {
	out := make([]string, len(l.columns))
	copy(out, l.columns)
	return out
}

// Rows returns a copy of the in-memory rows in file order.
func (l *Ledger) Rows() []Row {
	out := make([]Row, len(l.rows))
	copy(out, l.rows)
	return out
}

// Len reports the number of rows.
func (l *Ledger) Len() int { return len(l.rows) }

// Find returns the row carrying id.
func (l *Ledger) Find(id int) (Row, error) {
	for _, row := range l.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return Row{}, faults.Wrap(faults.ErrNotFound, "ledger", "find", fmt.Sprintf("no row with id %d", id), nil)
}

// NextID returns 1 + the highest id present. Recomputed from the rows on
// every call so it can never drift from the file contents.
func (l *Ledger) NextID() int {
	max := 0
	for _, row := range l.rows {
		if row.ID > max {
			max = row.ID
		}
	}
	return max + 1
}

// Append durably writes one row to the end of the file, creating it with a
// BOM and header first when needed. The write is flushed and synced before
// Append returns; a locked or unwritable file is retried a bounded number of
// times and then surfaced as ErrIO without touching the in-memory rows.
func (l *Ledger) Append(row Row) error {
	err := l.withRetry(func() error {
		return l.appendOnce(row)
	})
	if err != nil {
		return faults.Wrap(faults.ErrIO, "ledger", "append", l.path, err)
	}
	l.rows = append(l.rows, row)
	return nil
}

func (l *Ledger) appendOnce(row Row) error {
	_, statErr := os.Stat(l.path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	if isNew {
		if _, err := file.WriteString(utf8BOM); err != nil {
			return err
		}
	}

	writer := csv.NewWriter(file)
	writer.Comma = l.opts.separator()
	writer.UseCRLF = true

	if isNew {
		if err := writer.Write(l.columns); err != nil {
			return err
		}
	}
	if err := writer.Write(l.record(row)); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return err
	}
	return file.Close()
}

// Rewrite atomically replaces the whole file with the given rows: the new
// content goes to a uniquely named temp file in the same directory, which is
// then renamed over the original. A crash mid-rewrite leaves the previous
// file intact. Ids are written as given; Rewrite never renumbers, so
// deletions leave gaps.
func (l *Ledger) Rewrite(rows []Row) error {
	tmp := l.path + "." + uuid.NewString() + ".tmp"

	err := l.withRetry(func() error {
		if err := l.writeAll(tmp, rows); err != nil {
			os.Remove(tmp)
			return err
		}
		if err := os.Rename(tmp, l.path); err != nil {
			os.Remove(tmp)
			return err
		}
		return nil
	})
	if err != nil {
		return faults.Wrap(faults.ErrIO, "ledger", "rewrite", l.path, err)
	}
	l.rows = make([]Row, len(rows))
	copy(l.rows, rows)
	return nil
}

func (l *Ledger) writeAll(path string, rows []Row) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.WriteString(utf8BOM); err != nil {
		return err
	}
	writer := csv.NewWriter(file)
	writer.Comma = l.opts.separator()
	writer.UseCRLF = true
	if err := writer.Write(l.columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(l.record(row)); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return err
	}
	return file.Close()
}

func (l *Ledger) record(row Row) []string {
	record := make([]string, len(l.columns))
	for i, column := range l.columns {
		record[i] = row.Field(column, l.opts.Decimal)
	}
	return record
}

func (l *Ledger) withRetry(fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= writeRetryAttempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt < writeRetryAttempts {
			l.sleep(writeRetryDelay)
		}
	}
	return lastErr
}
