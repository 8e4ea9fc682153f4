package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestEvalCommand(t *testing.T) {
	t.Run("single formula", func(t *testing.T) {
		out, _, err := executeCommand(t, "eval", "=SUM(1,2,3)")
		require.NoError(t, err)
		assert.Equal(t, "6\n", out)
	})

	t.Run("formula without equals", func(t *testing.T) {
		out, _, err := executeCommand(t, "eval", `UPPER("abc")&LEN("xyz")`)
		require.NoError(t, err)
		assert.Equal(t, "ABC3\n", out)
	})

	t.Run("against a workbook", func(t *testing.T) {
		path := writeWorkbook(t, testWorkbook)
		out, _, err := executeCommand(t, "eval", "-w", path, "--worksheet", "Inputs", "=B1*2", "A1/0")
		require.NoError(t, err)
		assert.Equal(t, "=B1*2\t84\nA1/0\t#DIV/0!\n", out)
	})

	t.Run("parse failures are values", func(t *testing.T) {
		out, _, err := executeCommand(t, "eval", "=1+")
		require.NoError(t, err)
		assert.Equal(t, "#VALUE!\n", out)
	})

	t.Run("unknown worksheet", func(t *testing.T) {
		path := writeWorkbook(t, testWorkbook)
		_, _, err := executeCommand(t, "eval", "-w", path, "=1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "evaluating =1 on Sheet1")
	})

	t.Run("requires a formula", func(t *testing.T) {
		_, _, err := executeCommand(t, "eval")
		require.Error(t, err)
	})

	t.Run("bad log level", func(t *testing.T) {
		_, _, err := executeCommand(t, "--log-level", "loud", "eval", "=1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestRunCommand(t *testing.T) {
	path := writeWorkbook(t, testWorkbook)

	t.Run("all cells", func(t *testing.T) {
		out, _, err := executeCommand(t, "run", path)
		require.NoError(t, err)
		assert.Equal(t, "Inputs!A1: 10\n"+
			"Inputs!B1: 42\n"+
			"Inputs!A2: 32\n"+
			"'My Report'!A1: 52\n"+
			"'My Report'!B1: #DIV/0!\n"+
			"'My Report'!A2: #NAME?\n", out)
	})

	t.Run("selected cells", func(t *testing.T) {
		out, _, err := executeCommand(t, "run", path, "--cells", "Inputs!B1,Inputs!C9")
		require.NoError(t, err)
		assert.Equal(t, "Inputs!B1: 42\nInputs!C9: <empty>\n", out)
	})

	t.Run("bad cell address", func(t *testing.T) {
		_, _, err := executeCommand(t, "run", path, "--cells", "Inputs!A0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "running workbook")
	})

	t.Run("metrics", func(t *testing.T) {
		out, _, err := executeCommand(t, "run", path, "--metrics", "--cells", "Inputs!B1")
		require.NoError(t, err)
		assert.Contains(t, out, "Inputs!B1: 42\n")
		assert.Contains(t, out, `spreadsheet_function_calls_total{function="SUM"} 2`)
		assert.Contains(t, out, "# TYPE spreadsheet_calculation_duration_seconds histogram")
		assert.Contains(t, out, "spreadsheet_calculation_duration_seconds_count 1")
	})

	t.Run("debug logging goes to stderr", func(t *testing.T) {
		out, errOut, err := executeCommand(t, "--log-level", "debug", "--log-format", "json", "run", path, "--cells", "Inputs!A1")
		require.NoError(t, err)
		assert.Equal(t, "Inputs!A1: 10\n", out)
		assert.Contains(t, errOut, `"msg":"calculated"`)
	})

	t.Run("missing workbook", func(t *testing.T) {
		_, _, err := executeCommand(t, "run", "does-not-exist.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading workbook")
	})
}

func TestFunctionsCommand(t *testing.T) {
	out, _, err := executeCommand(t, "functions", "ran")
	require.NoError(t, err)
	assert.Equal(t, "RAND (volatile)\nRANDBETWEEN (volatile)\nRANK\nRANK.EQ\n", out)

	out, _, err = executeCommand(t, "functions")
	require.NoError(t, err)
	assert.Contains(t, out, "SUM\n")
	assert.Contains(t, out, "NOW (volatile)\n")
	assert.Contains(t, out, "VLOOKUP\n")
}
