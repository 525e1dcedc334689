package solver

type State uint8

const (
	Unconfigured State = iota
	Configured
	Normalizing
	ComputingSource
	Sweeping
	ComputingEigenvalue
	Converged
	MaxIterationsReached
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "Unconfigured"
	case Configured:
		return "Configured"
	case Normalizing:
		return "Normalizing"
	case ComputingSource:
		return "ComputingSource"
	case Sweeping:
		return "Sweeping"
	case ComputingEigenvalue:
		return "ComputingEigenvalue"
	case Converged:
		return "Converged"
	case MaxIterationsReached:
		return "MaxIterationsReached"
	}
	return "Unknown"
}

func (s State) Done() bool {
	return s == Converged || s == MaxIterationsReached
}
