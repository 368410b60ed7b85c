package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageResult_SkippedIDs(t *testing.T) {
	r := StageResult{Skipped: []Skip{
		{CrosswalkID: 9, CenterID: CenterA, Reason: "no lights"},
		{CrosswalkID: 4, Reason: "zero-area polygon"},
		{CrosswalkID: 9, CenterID: CenterB, Reason: "no lights"},
	}}
	assert.Equal(t, []int64{9, 4}, r.SkippedIDs())
	assert.Nil(t, StageResult{}.SkippedIDs())
}

func TestStageResult_JSON(t *testing.T) {
	data, err := json.Marshal(StageResult{Name: StageEdges, Status: StageStatusComplete, Input: 3, Output: 2, Duration: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"edges","status":"complete","input":3,"output":2,"duration_ms":7}`, string(data))
}
