package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStock_PctChange(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		prev  float64
		want  float64
	}{
		{"down two percent", 980, 1000, -2},
		{"up five percent", 105, 100, 5},
		{"unchanged", 100, 100, 0},
		{"zero prev defined as zero", 50, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Stock{
				Price:     decimal.NewFromFloat(tt.price),
				PrevPrice: decimal.NewFromFloat(tt.prev),
			}
			assert.True(t, s.PctChange().Equal(decimal.NewFromFloat(tt.want)),
				"got %s, want %v", s.PctChange(), tt.want)
		})
	}
}

func TestTeam_CloneIsDeep(t *testing.T) {
	team := &Team{
		ID:       "Alpha",
		Cash:     decimal.NewFromInt(1000),
		Holdings: map[string]int64{"TATA": 5},
	}

	cp := team.Clone()
	cp.Holdings["TATA"] = 99

	assert.EqualValues(t, 5, team.Holdings["TATA"], "clone must not share the holdings map")
}
