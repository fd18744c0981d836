package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proactiva/planrunner/pkg/types"
)

func TestSaveAndGetReport(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	r := types.Report{SessionID: "sess-1", Status: types.ReportComplete, TotalRequests: 4, Passed: 4}
	require.NoError(t, s.SaveReport(r))

	got, err := s.GetReport("sess-1")
	require.NoError(t, err)
	assert.Equal(t, r.TotalRequests, got.TotalRequests)
	assert.Equal(t, r.Status, got.Status)
}

func TestSaveReportIsUpsert(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveReport(types.Report{SessionID: "sess-1", Passed: 1}))
	require.NoError(t, s.SaveReport(types.Report{SessionID: "sess-1", Passed: 2}))

	got, err := s.GetReport("sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Passed)
}

func TestListReports(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveReport(types.Report{SessionID: "a"}))
	require.NoError(t, s.SaveReport(types.Report{SessionID: "b"}))

	all, err := s.ListReports()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetReportMissingFails(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetReport("missing")
	assert.Error(t, err)
}
