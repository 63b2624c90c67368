package partition

import "fmt"

// Warning codes.
const (
	// WarnColumnPolicyDowngraded means hide_extras was compiled as keep_all.
	WarnColumnPolicyDowngraded = "column_policy_downgraded"
	// WarnDirectQueryTransforms means custom steps on a DirectQuery partition
	// may stop the query from folding.
	WarnDirectQueryTransforms = "directquery_transforms"
)

// Warning is a structured, queryable note about output that differs from
// what the model declared.
type Warning struct {
	Code      string `json:"code"`
	Table     string `json:"table"`
	Partition string `json:"partition"`
	// From and To name the declared and applied behavior, when relevant.
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s/%s: %s", w.Code, w.Table, w.Partition, w.Message)
}
