package main

import (
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// Workbook is the yaml description of a spreadsheet:
//
//	date_system: 1900
//	log_level: info
//	worksheets:
//	  - name: Sheet1
//	    cells:
//	      A1: 10
//	      A2: =A1*2
//	named_ranges:
//	  Rates: Sheet1!A1:A2
//	  Pending: ""
//
// a named range with an empty address is declared without being defined
type Workbook struct {
	DateSystem  int               `yaml:"date_system"`
	LogLevel    string            `yaml:"log_level"`
	LogFormat   string            `yaml:"log_format"`
	Worksheets  []WorksheetConfig `yaml:"worksheets"`
	NamedRanges map[string]string `yaml:"named_ranges"`
}

// WorksheetConfig holds one worksheet's cells keyed by A1 address
type WorksheetConfig struct {
	Name  string         `yaml:"name"`
	Cells map[string]any `yaml:"cells"`
}

// LoadWorkbook reads and validates a workbook file
func LoadWorkbook(path string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading workbook %s", path)
	}
	wb, err := ParseWorkbook(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading workbook %s", path)
	}
	return wb, nil
}

// ParseWorkbook decodes and validates workbook yaml
func ParseWorkbook(data []byte) (*Workbook, error) {
	var wb Workbook
	if err := yaml.Unmarshal(data, &wb); err != nil {
		return nil, errors.Wrap(err, "parsing workbook yaml")
	}
	if err := wb.validate(); err != nil {
		return nil, err
	}
	return &wb, nil
}

func (wb *Workbook) validate() error {
	switch wb.DateSystem {
	case 0, 1900, 1904:
	default:
		return errors.Errorf("date_system must be 1900 or 1904, got %d", wb.DateSystem)
	}

	seen := make(map[string]struct{}, len(wb.Worksheets))
	for i, ws := range wb.Worksheets {
		if strings.TrimSpace(ws.Name) == "" {
			return errors.Errorf("worksheet #%d has no name", i+1)
		}
		key := strings.ToLower(ws.Name)
		if _, dup := seen[key]; dup {
			return errors.Errorf("worksheet %q is listed twice", ws.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (wb *Workbook) dateSystem() spreadsheet.DateSystem {
	if wb.DateSystem == 1904 {
		return spreadsheet.Date1904
	}
	return spreadsheet.Date1900
}

// Open builds a spreadsheet holding the workbook's worksheets, named ranges
// and cells. cells are set in address order so loading is deterministic.
func (wb *Workbook) Open(printLn func(string), opts ...spreadsheet.Option) (*spreadsheet.RunnableSpreadsheet, error) {
	opts = append([]spreadsheet.Option{spreadsheet.WithDateSystem(wb.dateSystem())}, opts...)
	r := spreadsheet.NewRunnableSpreadsheet(printLn, opts...)

	for _, ws := range wb.Worksheets {
		if err := r.AddWorksheet(ws.Name).Error(); err != nil {
			return nil, errors.Wrapf(err, "adding worksheet %q", ws.Name)
		}
	}

	for _, name := range sortedKeys(wb.NamedRanges) {
		address := strings.TrimSpace(wb.NamedRanges[name])
		if address == "" {
			r.AddNamedRange(name)
		} else {
			r.DefineNamedRange(name, address)
		}
		if err := r.Error(); err != nil {
			return nil, errors.Wrapf(err, "named range %q", name)
		}
	}

	for _, ws := range wb.Worksheets {
		for _, ref := range sortedKeys(ws.Cells) {
			address := qualify(ws.Name, ref)
			if err := r.Set(address, ws.Cells[ref]).Error(); err != nil {
				return nil, errors.Wrapf(err, "setting %s", address)
			}
		}
	}
	return r, nil
}

// qualify prefixes a cell reference with its worksheet, quoting names that
// are not plain identifiers
func qualify(worksheet, ref string) string {
	isLetter := func(r rune) bool { return r == '_' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' }
	plain := worksheet != "" && isLetter(rune(worksheet[0])) && strings.IndexFunc(worksheet, func(r rune) bool {
		return !(isLetter(r) || r == '.' || r >= '0' && r <= '9')
	}) == -1
	if plain {
		return worksheet + "!" + ref
	}
	return "'" + strings.ReplaceAll(worksheet, "'", "''") + "'!" + ref
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// newLogger builds the slog handler selected by level and format
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if level == "" {
		level = "warn"
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.Errorf("invalid log format %q, want text or json", format)
	}
}
