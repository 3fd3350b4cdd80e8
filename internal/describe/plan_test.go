package describe

import (
	"testing"

	"github.com/koustreak/pgdescribe/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanNullability(t *testing.T) {
	tests := []struct {
		name  string
		plan  string
		ncols int
		want  []Nullability
	}{
		{
			name:  "seq scan concludes nothing",
			plan:  `[{"Plan":{"Node Type":"Seq Scan","Output":["tweet.id","tweet.text"]}}]`,
			ncols: 2,
			want:  []Nullability{NullabilityUnknown, NullabilityUnknown},
		},
		{
			name: "inner side of left join",
			plan: `[{"Plan":{
				"Node Type":"Hash Join","Join Type":"Left",
				"Output":["t.id","u.name"],
				"Plans":[
					{"Node Type":"Seq Scan","Parent Relationship":"Outer","Output":["t.id","t.owner_id"]},
					{"Node Type":"Hash","Parent Relationship":"Inner","Output":["u.name","u.id"],
					 "Plans":[{"Node Type":"Seq Scan","Parent Relationship":"Outer","Output":["u.name","u.id"]}]}
				]}}]`,
			ncols: 2,
			want:  []Nullability{NullabilityUnknown, Nullable},
		},
		{
			name:  "full join marks every output",
			plan:  `[{"Plan":{"Node Type":"Merge Join","Join Type":"Full","Output":["a.x","b.y"]}}]`,
			ncols: 2,
			want:  []Nullability{Nullable, Nullable},
		},
		{
			name: "inner join is not descended",
			plan: `[{"Plan":{
				"Node Type":"Nested Loop","Join Type":"Inner",
				"Output":["a.x","b.y"],
				"Plans":[
					{"Node Type":"Seq Scan","Parent Relationship":"Outer","Output":["a.x"]},
					{"Node Type":"Seq Scan","Parent Relationship":"Inner","Output":["b.y"]}
				]}}]`,
			ncols: 2,
			want:  []Nullability{NullabilityUnknown, NullabilityUnknown},
		},
		{
			name:  "outputs beyond the column count are ignored",
			plan:  `[{"Plan":{"Node Type":"Merge Join","Join Type":"Full","Output":["a.x","b.y"]}}]`,
			ncols: 1,
			want:  []Nullability{Nullable},
		},
		{
			name:  "unknown fields are tolerated",
			plan:  `[{"Plan":{"Node Type":"Result","Output":["1"],"Startup Cost":0.0,"Plan Width":4}}]`,
			ncols: 1,
			want:  []Nullability{NullabilityUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := planNullability([]byte(tt.plan), tt.ncols)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanNullability_Malformed(t *testing.T) {
	for _, raw := range []string{
		``,
		`not json`,
		`{"Plan":{}}`,
		`[]`,
		`[{"NotAPlan":1}]`,
		`[{"Plan":{}},{"Plan":{}}]`,
		`[{"Plan":{"Output":"tweet.id"}}]`,
	} {
		_, err := planNullability([]byte(raw), 1)
		assert.True(t, errs.IsPlanParse(err), "input %q", raw)
	}
}
