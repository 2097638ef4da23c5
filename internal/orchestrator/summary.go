package orchestrator

import (
	"fmt"

	"github.com/clustertools/certauth/internal/config"
	"github.com/clustertools/certauth/internal/directive"
	"github.com/clustertools/certauth/internal/mutate"
)

// Record is the outcome of one operation on one target. Outcome carries
// the mode-appropriate value: a mutation outcome, a revert outcome, a
// classification, or a service/probe status.
type Record struct {
	Stage     string
	Target    string
	Directive string
	Path      string
	Outcome   string
	Detail    string
	Err       error
}

// Summary aggregates per-target outcomes for a whole run. One target's
// failure never blocks another's processing; the summary is where the
// failures surface.
type Summary struct {
	Mode     config.Mode
	Records  []Record
	FollowUp []string
}

func (s *Summary) add(r Record) {
	s.Records = append(s.Records, r)
}

func (s *Summary) followUp(msg string) {
	s.FollowUp = append(s.FollowUp, msg)
}

// Counts returns the number of records per outcome.
func (s *Summary) Counts() map[string]int {
	counts := make(map[string]int)
	for _, r := range s.Records {
		counts[r.Outcome]++
	}
	return counts
}

// Failures returns the records whose operation failed outright.
func (s *Summary) Failures() []Record {
	var out []Record
	for _, r := range s.Records {
		if r.Err != nil || r.Outcome == string(mutate.Failed) {
			out = append(out, r)
		}
	}
	return out
}

// Err reports whether the run as a whole succeeded: nil for a clean run,
// otherwise an error describing what keeps the exit code non-zero. The
// criterion depends on the mode: mutation runs fail on failed operations,
// validation runs additionally fail on unsatisfied or non-pristine state.
func (s *Summary) Err() error {
	if n := len(s.Failures()); n > 0 {
		return fmt.Errorf("%d operation(s) failed", n)
	}

	switch s.Mode {
	case config.ModeValidate:
		var unsatisfied, probes int
		for _, r := range s.Records {
			if r.Outcome == directive.Absent.String() {
				unsatisfied++
			}
			if r.Stage == StageProbe && r.Outcome != "ok" {
				probes++
			}
		}
		if unsatisfied > 0 || probes > 0 {
			return fmt.Errorf("validation failed: %d directive(s) missing, %d probe(s) failed", unsatisfied, probes)
		}
	case config.ModeRollbackValidate:
		var owned int
		for _, r := range s.Records {
			if r.Outcome == directive.Ours.String() {
				owned++
			}
		}
		if owned > 0 {
			return fmt.Errorf("not pristine: %d engine-authored edit(s) remain", owned)
		}
	}
	return nil
}
