package main

import (
	"errors"
	"flag"
	"fmt"
	"testing"

	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"help", flag.ErrHelp, exitOK},
		{"usage", fmt.Errorf("%w: bad flag", errUsage), exitUsage},
		{"mismatch", fmt.Errorf("%w: 3 rows", errMismatch), exitMismatch},
		{"failure", errors.New("connection refused"), exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Empty(t, splitList(""))
	assert.Equal(t, []string{"unit_sold", "unit_shipped"}, splitList("unit_sold,unit_shipped"))
	assert.Equal(t, []string{"unit_sold", "final"}, splitList(" unit_sold, ,final "))
}

func newTestFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Usage = func() {}
	return fs
}

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		output  string
		wantErr bool
	}{
		{"table to stdout", config.FormatTable, "", false},
		{"xlsx to file", config.FormatXLSX, "report.xlsx", false},
		{"xlsx to stdout", config.FormatXLSX, "", true},
		{"unknown", "csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkFormat(newTestFlagSet(), tt.format, tt.output)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUsage)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseFlags(t *testing.T) {
	fs := newTestFlagSet()
	fix := fs.Bool("fix", false, "")
	require.NoError(t, parseFlags(fs, []string{"-fix"}))
	assert.True(t, *fix)

	fs = newTestFlagSet()
	assert.ErrorIs(t, parseFlags(fs, []string{"-unknown"}), errUsage)

	fs = newTestFlagSet()
	assert.ErrorIs(t, parseFlags(fs, []string{"extra"}), errUsage)
}

func TestParseUUID(t *testing.T) {
	_, err := parseUUID(newTestFlagSet(), "sale", "not-a-uuid")
	assert.ErrorIs(t, err, errUsage)

	id, err := parseUUID(newTestFlagSet(), "sale", "00000000-0000-0000-0000-0000000000aa")
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-0000000000aa", id.String())
}
