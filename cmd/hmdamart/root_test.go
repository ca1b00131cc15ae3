package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hmdamart/internal/incremental"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandTree(t *testing.T) {
	cmd := newRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "rematerialize", "serve", "tiers", "status"})
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestRematerializeRequiresYear(t *testing.T) {
	t.Setenv("HMDAMART_CONFIG", "")
	_, err := execute(t, "rematerialize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"year"`)
}

func TestTiersRejectsUnknownMode(t *testing.T) {
	t.Setenv("HMDAMART_CONFIG", "")
	_, err := execute(t, "tiers", "--msa", "31084", "--year", "2019", "--mode", "decile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tiering mode")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "status", "--config", "/nonexistent/hmdamart.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestPrintResult(t *testing.T) {
	res := &incremental.RunResult{
		RunID:       uuid.MustParse("3f1f1c0e-2a44-4f6e-8f1f-5b8f9d7c1a22"),
		Watermark:   2018,
		Partitions:  []incremental.PartitionResult{{Year: 2019, Records: 4, Attempts: 1}},
		FailedYears: []int{2020},
	}
	cause := errors.New("copy failed")

	var out bytes.Buffer
	err := printResult(&out, res, cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, out.String(), `"failed_years": [`)
	assert.Contains(t, out.String(), `"error": "copy failed"`)

	out.Reset()
	require.NoError(t, printResult(&out, nil, nil))
	assert.Empty(t, out.String())
}
