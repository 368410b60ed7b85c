package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jszwec/csvutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/night-light/internal/survey"
)

func TestCompareCmd_RunE(t *testing.T) {
	dir := t.TempDir()
	cfg = testConfig(t, dir)

	runCmd.SetContext(context.Background())
	defer runCmd.SetContext(context.TODO())
	require.NoError(t, runCmd.RunE(runCmd, nil))

	surveyPath := filepath.Join(dir, "survey.csv")
	require.NoError(t, os.WriteFile(surveyPath, []byte(
		"Crosswalk ID,Center ID,Perceived Contrast,Net lux\n1,A,1,2.5\n1,B,-1,-0.4\n44,A,0,\n"), 0o644))

	compareDir := filepath.Join(dir, "compare")
	require.NoError(t, compareCmd.Flags().Set("survey", surveyPath))
	require.NoError(t, compareCmd.Flags().Set("out", compareDir))
	t.Cleanup(func() {
		_ = compareCmd.Flags().Set("survey", "")
		_ = compareCmd.Flags().Set("out", "")
	})

	compareCmd.SetContext(context.Background())
	defer compareCmd.SetContext(context.TODO())
	require.NoError(t, compareCmd.RunE(compareCmd, nil))

	data, err := os.ReadFile(filepath.Join(compareDir, "crosswalk_compare.csv"))
	require.NoError(t, err)
	var rows []survey.Row
	require.NoError(t, csvutil.Unmarshal(data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "A", rows[0].CenterID)
	assert.Equal(t, "B", rows[1].CenterID)
}

func TestCompareCmd_RunE_NoResults(t *testing.T) {
	dir := t.TempDir()
	cfg = testConfig(t, dir)

	surveyPath := filepath.Join(dir, "survey.csv")
	require.NoError(t, os.WriteFile(surveyPath, []byte("Crosswalk ID,Center ID\n1,A\n"), 0o644))
	require.NoError(t, compareCmd.Flags().Set("survey", surveyPath))
	t.Cleanup(func() { _ = compareCmd.Flags().Set("survey", "") })

	compareCmd.SetContext(context.Background())
	defer compareCmd.SetContext(context.TODO())

	err := compareCmd.RunE(compareCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stored results")
}

func TestFormatCompareSummary(t *testing.T) {
	var buf bytes.Buffer
	formatCompareSummary(&buf, survey.Summary{Observations: 5, Matched: 4, Rated: 4, Aligned: 3, Unmatched: []string{"9A"}}, "out/crosswalk_compare.csv")

	output := buf.String()
	assert.Contains(t, output, "Matched:      4")
	assert.Contains(t, output, "Aligned:      3 (75.0%)")
	assert.Contains(t, output, "[9A]")
	assert.Contains(t, output, "out/crosswalk_compare.csv")
}
