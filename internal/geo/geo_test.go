// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in        string
		accession string
		kind      Kind
		ok        bool
	}{
		{"GSE12345", "GSE12345", Series, true},
		{"  gse42  ", "GSE42", Series, true},
		{"GSM999", "GSM999", Sample, true},
		{"gpl570", "GPL570", Platform, true},
		{"GDS1001", "GDS1001", Dataset, true},
		{"GSE", "", "", false},
		{"GSE12345extra", "", "", false},
		{"12345", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		accession, kind, ok := Parse(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.accession, accession, tt.in)
		assert.Equal(t, tt.kind, kind, tt.in)
	}
}

func TestIsSeries(t *testing.T) {
	assert.True(t, IsSeries("gse7"))
	assert.False(t, IsSeries("GSM7"))
	assert.False(t, IsSeries("series 7"))
}
