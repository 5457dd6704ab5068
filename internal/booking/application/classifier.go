package application

import "bytes"

const (
	// AuthErrorMarker appears in the probe response once the session has expired.
	AuthErrorMarker = "error"
	// CommitSuccessMarker appears in the appointment response after a successful reschedule.
	CommitSuccessMarker = "Successfully Scheduled"
)

// ResponseClassifier turns portal response bodies into decisions.
type ResponseClassifier interface {
	IsAuthError(body []byte) bool
	IsCommitSuccess(body []byte) bool
}

// MarkerClassifier classifies bodies by literal substrings.
type MarkerClassifier struct {
	AuthErrorMarker string
	SuccessMarker   string
}

// DefaultClassifier returns the classifier for the portal's literal markers.
func DefaultClassifier() MarkerClassifier {
	return MarkerClassifier{
		AuthErrorMarker: AuthErrorMarker,
		SuccessMarker:   CommitSuccessMarker,
	}
}

// IsAuthError reports whether the probe body carries the auth-error marker.
func (c MarkerClassifier) IsAuthError(body []byte) bool {
	if c.AuthErrorMarker == "" {
		return false
	}
	return bytes.Contains(body, []byte(c.AuthErrorMarker))
}

// IsCommitSuccess reports whether the body contains the exact success marker.
// An empty marker never matches.
func (c MarkerClassifier) IsCommitSuccess(body []byte) bool {
	if c.SuccessMarker == "" {
		return false
	}
	return bytes.Contains(body, []byte(c.SuccessMarker))
}
