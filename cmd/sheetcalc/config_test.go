package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

const testWorkbook = `
log_level: error
worksheets:
  - name: Inputs
    cells:
      A1: 10
      A2: 32
      B1: =A1+A2
  - name: My Report
    cells:
      A1: =SUM(Rate)+SUM(Inputs!A1:A2)
      A2: =Pending
      B1: "#DIV/0!"
named_ranges:
  Rate: Inputs!A1
  Pending: ""
`

func writeWorkbook(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseWorkbook(t *testing.T) {
	wb, err := ParseWorkbook([]byte(testWorkbook))
	require.NoError(t, err)

	assert.Equal(t, "error", wb.LogLevel)
	require.Len(t, wb.Worksheets, 2)
	assert.Equal(t, "My Report", wb.Worksheets[1].Name)
	assert.Equal(t, 10, wb.Worksheets[0].Cells["A1"])
	assert.Equal(t, "=A1+A2", wb.Worksheets[0].Cells["B1"])
	assert.Equal(t, map[string]string{"Rate": "Inputs!A1", "Pending": ""}, wb.NamedRanges)
	assert.Equal(t, spreadsheet.Date1900, wb.dateSystem())
}

func TestParseWorkbookErrors(t *testing.T) {
	tests := map[string]struct {
		yaml    string
		message string
	}{
		"bad yaml": {
			yaml:    "worksheets: [",
			message: "parsing workbook yaml",
		},
		"date system": {
			yaml:    "date_system: 1901",
			message: "date_system must be 1900 or 1904",
		},
		"unnamed worksheet": {
			yaml:    "worksheets:\n  - cells: {A1: 1}",
			message: "worksheet #1 has no name",
		},
		"duplicate worksheet": {
			yaml:    "worksheets:\n  - name: Data\n  - name: DATA",
			message: `worksheet "DATA" is listed twice`,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseWorkbook([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadWorkbook(t *testing.T) {
	wb, err := LoadWorkbook(writeWorkbook(t, testWorkbook))
	require.NoError(t, err)
	assert.Len(t, wb.Worksheets, 2)

	_, err = LoadWorkbook(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading workbook")

	_, err = LoadWorkbook(writeWorkbook(t, "date_system: 2000"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading workbook")
}

func TestWorkbookOpen(t *testing.T) {
	wb, err := ParseWorkbook([]byte(testWorkbook))
	require.NoError(t, err)

	r, err := wb.Open(func(string) {})
	require.NoError(t, err)
	sheet, err := r.Run()
	require.NoError(t, err)

	assertCell := func(address string, expected spreadsheet.Primitive) {
		t.Helper()
		val, err := sheet.Get(address)
		require.NoError(t, err)
		assert.Equal(t, expected, val, address)
	}
	assertCell("Inputs!B1", 42.0)
	assertCell("'My Report'!A1", 52.0)

	val, err := sheet.Get("'My Report'!A2")
	require.NoError(t, err)
	assert.Equal(t, "#NAME?", spreadsheet.FormatValue(val))
	assert.Equal(t, []string{"Inputs", "My Report"}, sheet.ListWorksheets())
	assert.Equal(t, []string{"Rate"}, sheet.ListNamedRanges())
	assert.Equal(t, []string{"Pending"}, sheet.ListReferencedNamedRanges())
}

func TestWorkbookOpenDateSystem(t *testing.T) {
	wb, err := ParseWorkbook([]byte("date_system: 1904\nworksheets:\n  - name: Sheet1\n    cells:\n      A1: =DATE(1904,1,2)\n"))
	require.NoError(t, err)
	assert.Equal(t, spreadsheet.Date1904, wb.dateSystem())

	r, err := wb.Open(func(string) {})
	require.NoError(t, err)
	sheet, err := r.Run()
	require.NoError(t, err)
	val, err := sheet.Get("Sheet1!A1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, val)
}

func TestWorkbookOpenErrors(t *testing.T) {
	t.Run("bad address", func(t *testing.T) {
		wb := &Workbook{Worksheets: []WorksheetConfig{{Name: "Sheet1", Cells: map[string]any{"A0": 1}}}}
		_, err := wb.Open(func(string) {})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "setting Sheet1!A0")
	})

	t.Run("bad named range", func(t *testing.T) {
		wb := &Workbook{
			Worksheets:  []WorksheetConfig{{Name: "Sheet1"}},
			NamedRanges: map[string]string{"Lost": "Nowhere!A1"},
		}
		_, err := wb.Open(func(string) {})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `named range "Lost"`)
	})

	t.Run("unsupported value", func(t *testing.T) {
		wb := &Workbook{Worksheets: []WorksheetConfig{{Name: "Sheet1", Cells: map[string]any{"A1": []any{1, 2}}}}}
		_, err := wb.Open(func(string) {})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Unsupported cell value type")
	})
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "Sheet1!A1", qualify("Sheet1", "A1"))
	assert.Equal(t, "Q1_2024.v2!B2", qualify("Q1_2024.v2", "B2"))
	assert.Equal(t, "'My Report'!A1", qualify("My Report", "A1"))
	assert.Equal(t, "'Bob''s'!C3", qualify("Bob's", "C3"))
	assert.Equal(t, "'2024'!A1", qualify("2024", "A1"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, "", "")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "cells", 3)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown cells=3")

	buf.Reset()
	logger, err = newLogger(&buf, "debug", "JSON")
	require.NoError(t, err)
	logger.Debug("calculated")
	assert.Contains(t, buf.String(), `"msg":"calculated"`)

	_, err = newLogger(&buf, "loud", "text")
	assert.ErrorContains(t, err, `invalid log level "loud"`)
	_, err = newLogger(&buf, "info", "xml")
	assert.ErrorContains(t, err, `invalid log format "xml"`)
}
