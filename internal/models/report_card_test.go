package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportStatusCanTransition(t *testing.T) {
	tests := []struct {
		from    ReportStatus
		to      ReportStatus
		allowed bool
	}{
		{ReportStatusDraft, ReportStatusGenerated, true},
		{ReportStatusGenerated, ReportStatusGenerated, true},
		{ReportStatusGenerated, ReportStatusPublished, true},
		{ReportStatusPublished, ReportStatusDistributed, true},
		{ReportStatusDraft, ReportStatusPublished, false},
		{ReportStatusDraft, ReportStatusDistributed, false},
		{ReportStatusPublished, ReportStatusGenerated, false},
		{ReportStatusPublished, ReportStatusDraft, false},
		{ReportStatusDistributed, ReportStatusPublished, false},
		{ReportStatusDistributed, ReportStatusDistributed, false},
		{ReportStatusGenerated, ReportStatusDraft, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestReportStatusValid(t *testing.T) {
	assert.True(t, ReportStatusDraft.Valid())
	assert.True(t, ReportStatusDistributed.Valid())
	assert.False(t, ReportStatus("archived").Valid())
}

func TestCoScholasticTraitsMissing(t *testing.T) {
	full := TraitGrades{}
	for _, key := range CoScholasticTraits {
		full[key] = "A"
	}
	assert.Empty(t, full.Missing())

	partial := TraitGrades{"handwriting": "B", "neatness": "A"}
	missing := partial.Missing()
	assert.Len(t, missing, len(CoScholasticTraits)-2)
	assert.Contains(t, missing, "oral_expression")
	assert.NotContains(t, missing, "handwriting")
}
