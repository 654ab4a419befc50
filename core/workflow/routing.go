package workflow

// DefaultNextStep is the status-only routing used by queue views. It can
// disagree with the resolver, which looks at stored stages instead.
func DefaultNextStep(status Status) StepPath {
	switch Normalize(string(status)) {
	case StatusCreated, StatusPending:
		return PathGeneralInfo
	case StatusActionRequired:
		return PathReview
	case StatusRejected:
		return PathGeneralInfo
	case StatusApproved:
		return PathGeneralInfo
	default:
		return PathGeneralInfo
	}
}
