package describe

import (
	"encoding/json"
	"slices"

	"github.com/koustreak/pgdescribe/internal/errs"
)

// planNode is the subset of an EXPLAIN (FORMAT JSON) node we read.
type planNode struct {
	NodeType           string     `json:"Node Type"`
	JoinType           string     `json:"Join Type"`
	ParentRelationship string     `json:"Parent Relationship"`
	Output             []string   `json:"Output"`
	Plans              []planNode `json:"Plans"`
}

type explainEntry struct {
	Plan *planNode `json:"Plan"`
}

func parsePlan(raw []byte) (*planNode, error) {
	var entries []explainEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errs.Wrap(errs.ErrKindPlanParse, "decode EXPLAIN output", err)
	}
	if len(entries) != 1 || entries[0].Plan == nil {
		return nil, errs.Newf(errs.ErrKindPlanParse, "expected one plan, got %d entries", len(entries))
	}
	return entries[0].Plan, nil
}

// planNullability reads per-column verdicts for ncols output columns from a
// JSON plan. Only Nullable is ever concluded; everything else stays Unknown.
func planNullability(raw []byte, ncols int) ([]Nullability, error) {
	root, err := parsePlan(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Nullability, ncols)
	visitPlan(root, root.Output, out)
	return out, nil
}

// visitPlan marks the outputs of a full join, and of the inner side of an
// outer join, as nullable wherever they surface in the root output list.
func visitPlan(n *planNode, outputs []string, out []Nullability) {
	if n.JoinType == "Full" || n.ParentRelationship == "Inner" {
		for _, o := range n.Output {
			if i := slices.Index(outputs, o); i >= 0 && i < len(out) {
				out[i] = Nullable
			}
		}
	}

	if n.JoinType == "Left" || n.JoinType == "Right" {
		for i := range n.Plans {
			visitPlan(&n.Plans[i], outputs, out)
		}
	}
}
