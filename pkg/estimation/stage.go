package estimation

import "fmt"

// Stage is the progress of one direction through the estimation
type Stage int

const (
	NotStarted Stage = iota
	Binning
	ExperimentalComputed
	Fitted
	Scored
	Aggregated
)

var stageNames = [...]string{
	NotStarted:           "not-started",
	Binning:              "binning",
	ExperimentalComputed: "experimental-computed",
	Fitted:               "fitted",
	Scored:               "scored",
	Aggregated:           "aggregated",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// MarshalText implements encoding.TextMarshaler
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
