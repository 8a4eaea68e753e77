package fault

import "github.com/banshee-data/incident.report/internal/detection"

// Stage is one named transformation of the score map.
type Stage struct {
	Name  string
	Apply func(Map, Evidence) Map
}

// Snapshot records the output of a stage.
type Snapshot struct {
	Stage  string `json:"stage"`
	Scores Map    `json:"scores"`
}

// Trace is the audited result of an assessment.
type Trace struct {
	Stages []Snapshot `json:"stages"`
	Final  Map        `json:"final"`
}

// Pipeline runs stages in order, each seeing the previous stage's output.
type Pipeline []Stage

// DefaultPipeline returns the score, verify, normalize pipeline.
func DefaultPipeline() Pipeline {
	return Pipeline{
		{Name: "score", Apply: func(_ Map, ev Evidence) Map { return Score(ev) }},
		{Name: "verify", Apply: Verify},
		{Name: "normalize", Apply: func(m Map, _ Evidence) Map { return Normalize(m) }},
	}
}

// Run applies the stages to an empty map and records each result.
func (p Pipeline) Run(ev Evidence) Trace {
	m := Map{}
	tr := Trace{Stages: make([]Snapshot, 0, len(p))}
	for _, st := range p {
		m = st.Apply(m, ev)
		tr.Stages = append(tr.Stages, Snapshot{Stage: st.Name, Scores: m.Clone()})
	}
	tr.Final = m
	return tr
}

// Assess produces the final fault percentages for the given vehicles. The
// summary is the augmented scene description, searched for impact keywords.
// With one or no vehicle there is nobody to share fault with and the
// verdict is {0: 0}.
func Assess(vehicles []detection.Object, summary string) Trace {
	if len(vehicles) <= 1 {
		return Trace{
			Stages: []Snapshot{
				{Stage: "score", Scores: Map{0: 0}},
				{Stage: "verify", Scores: Map{0: 0}},
				{Stage: "normalize", Scores: Map{0: 0}},
			},
			Final: Map{0: 0},
		}
	}
	return DefaultPipeline().Run(Evidence{Vehicles: vehicles, Summary: summary})
}
