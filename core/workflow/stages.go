package workflow

import (
	"strings"
)

type StageKind string

const (
	StageGeneralInfo      StageKind = "general-info"
	StageDeviation        StageKind = "deviation"
	StagePreliminary      StageKind = "preliminary"
	StageRootCause        StageKind = "root-cause"
	StageCorrectiveAction StageKind = "corrective-action"
	StageEvaluation       StageKind = "evaluation"
)

// StepPath is the client route a user resumes at.
type StepPath string

const (
	PathGeneralInfo StepPath = "/general-info"
	PathDeviation   StepPath = "/deviation"
	PathPreliminary StepPath = "/preliminary"
	PathReview      StepPath = "/review"
	PathClosure     StepPath = "/closure"
	PathComments    StepPath = "/comments"
)

type stageSpec struct {
	kind   StageKind
	path   StepPath
	fields []string
	flags  []string
	// aliases maps intake form labels onto field names.
	aliases map[string]string
}

// pipeline is ordered; the resolver walks it front to back.
var pipeline = []stageSpec{
	{
		kind: StageGeneralInfo,
		path: PathGeneralInfo,
		fields: []string{"originator", "title", "original_date_due", "date_opened", "date_due",
			"quality_approver", "quality_reviewer", "supervisor_manager", "description", "batch_no"},
		aliases: map[string]string{
			"Originator":        "originator",
			"Title":             "title",
			"Original Date Due": "original_date_due",
			"Date Opened":       "date_opened",
			"Date Due":          "date_due",
			"Quality Approver":  "quality_approver",
			"Quality Reviewer":  "quality_reviewer",
			"Supervisor":        "supervisor_manager",
			"Description":       "description",
			"BatchNo":           "batch_no",
		},
	},
	{
		kind:   StageDeviation,
		path:   PathDeviation,
		fields: []string{"title", "description", "standard", "immediate_action", "reviewer_remarks"},
		flags:  []string{"standard_na", "immediate_action_na"},
	},
	{
		kind:   StagePreliminary,
		path:   PathPreliminary,
		fields: []string{"investigation_html", "reviewer_html"},
		flags:  []string{"investigation_na", "reviewer_na"},
	},
	{
		kind:   StageRootCause,
		path:   PathReview,
		fields: []string{"root_cause_html", "action", "justification_html", "remarks"},
		flags:  []string{"root_cause_na", "action_na", "justification_na", "remarks_na"},
	},
	{
		kind:   StageCorrectiveAction,
		path:   PathClosure,
		fields: []string{"corrective_html", "preventive_html", "dept_head_html", "reviewer_remarks"},
		flags:  []string{"corrective_na", "preventive_na", "dept_head_na"},
	},
	{
		kind:   StageEvaluation,
		path:   PathComments,
		fields: []string{"qa_eval_html", "impact_html", "final_eval_html", "designee_name"},
		flags:  []string{"qa_na", "impact_na", "final_na"},
	},
}

var stageAliases = map[string]StageKind{
	"general":     StageGeneralInfo,
	"rca":         StageRootCause,
	"capa":        StageCorrectiveAction,
	"comments":    StageEvaluation,
	"evaluations": StageEvaluation,
}

func StageKinds() []StageKind {
	out := make([]StageKind, 0, len(pipeline))
	for _, st := range pipeline {
		out = append(out, st.kind)
	}
	return out
}

// ParseStageKind accepts canonical kinds plus the short legacy route names.
func ParseStageKind(raw string) (StageKind, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")
	if kind, ok := stageAliases[s]; ok {
		return kind, true
	}
	for _, st := range pipeline {
		if string(st.kind) == s {
			return st.kind, true
		}
	}
	return "", false
}

func (k StageKind) spec() (stageSpec, bool) {
	for _, st := range pipeline {
		if st.kind == k {
			return st, true
		}
	}
	return stageSpec{}, false
}

func (k StageKind) Path() StepPath {
	if st, ok := k.spec(); ok {
		return st.path
	}
	return PathGeneralInfo
}

// filterPayload keeps the kind's known fields and coerces *_na flags to bool.
// Keys absent from payload stay absent so the store keeps their saved values.
// incident_id and timestamps are owned by the store and always dropped.
func (k StageKind) filterPayload(payload map[string]any) map[string]any {
	st, ok := k.spec()
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(st.fields)+len(st.flags))
	for alias, f := range st.aliases {
		if v, ok := payload[alias]; ok {
			out[f] = v
		}
	}
	for _, f := range st.fields {
		if v, ok := payload[f]; ok {
			out[f] = v
		}
	}
	for _, f := range st.flags {
		if v, ok := payload[f]; ok {
			out[f] = truthy(v)
		}
	}
	return out
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s != "" && s != "false" && s != "0" && s != "no"
	default:
		return true
	}
}
