package reconcile

import "github.com/rpggio/fieldlog/internal/domain/project"

// Actual is the aggregate value of a method derived from surviving records.
type Actual struct {
	Points   int64
	MaxDepth float64
}

// MethodReport compares the stored aggregate of a method against its records.
type MethodReport struct {
	Method           project.Method `json:"method"`
	RecordedPoints   int64          `json:"recorded_points"`
	ActualPoints     int64          `json:"actual_points"`
	RecordedMaxDepth float64        `json:"recorded_max_depth"`
	ActualMaxDepth   float64        `json:"actual_max_depth"`
	Consistent       bool           `json:"consistent"`
}

// Report is the reconciliation outcome of one project.
type Report struct {
	ProjectID  string         `json:"project_id"`
	Methods    []MethodReport `json:"methods"`
	Consistent bool           `json:"consistent"`
	Repaired   bool           `json:"repaired"`
}

func buildReport(proj *project.Project, actual map[project.Method]Actual) *Report {
	rep := &Report{ProjectID: proj.ID, Consistent: true}
	for _, m := range project.Methods {
		recorded := proj.Progress[m]
		a := actual[m]
		mr := MethodReport{
			Method:           m,
			RecordedPoints:   recorded.CompletedPoints,
			ActualPoints:     a.Points,
			RecordedMaxDepth: recorded.MaxDepth,
			ActualMaxDepth:   a.MaxDepth,
			Consistent:       recorded.CompletedPoints == a.Points && recorded.MaxDepth == a.MaxDepth,
		}
		if !mr.Consistent {
			rep.Consistent = false
		}
		rep.Methods = append(rep.Methods, mr)
	}
	return rep
}
