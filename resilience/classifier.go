package resilience

import "errors"

// Classifier decides whether an outcome is eligible for retry.
//
// Contract:
//   - Purity: implementations must not have side effects.
//   - Errors: a classifier that panics is treated as a configuration fault,
//     never as a retry signal.
type Classifier func(o Outcome) bool

// DefaultClassifier retries transport faults and attempt timeouts.
var DefaultClassifier = HandleKinds(FaultTransport, FaultTimeout)

// HandleKinds retries faults of any of the given kinds.
func HandleKinds(kinds ...FaultKind) Classifier {
	return func(o Outcome) bool {
		if !o.Failed() {
			return false
		}
		kind := o.Kind()
		for _, k := range kinds {
			if k == kind {
				return true
			}
		}
		return false
	}
}

// HandleError retries faults for which match returns true.
func HandleError(match func(err error) bool) Classifier {
	return func(o Outcome) bool {
		return o.Failed() && match(o.Err)
	}
}

// HandleErrorIs retries faults matching any target via errors.Is.
func HandleErrorIs(targets ...error) Classifier {
	return HandleError(func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	})
}

// Or combines classifiers with logical OR.
func Or(classifiers ...Classifier) Classifier {
	return func(o Outcome) bool {
		for _, c := range classifiers {
			if c != nil && c(o) {
				return true
			}
		}
		return false
	}
}

// Always retries every fault.
func Always(o Outcome) bool {
	return o.Failed()
}

// Never retries nothing.
func Never(Outcome) bool {
	return false
}
