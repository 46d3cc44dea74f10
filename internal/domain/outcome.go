package domain

import "errors"

// ErrRefused marks a generation the backend declined to produce, as opposed
// to one that failed in transport.
var ErrRefused = errors.New("generation refused")

// OutcomeKind is the terminal state of a generation request.
type OutcomeKind int

const (
	OutcomeFailed OutcomeKind = iota
	OutcomeSuccess
	OutcomeRefused
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRefused:
		return "refused"
	default:
		return "failed"
	}
}

// Outcome carries the generated artifact, if any.
type Outcome struct {
	Kind  OutcomeKind
	Text  string
	Image []byte
	Err   error
}

func Success(text string) Outcome     { return Outcome{Kind: OutcomeSuccess, Text: text} }
func ImageSuccess(img []byte) Outcome { return Outcome{Kind: OutcomeSuccess, Image: img} }
func Refused(text string) Outcome     { return Outcome{Kind: OutcomeRefused, Text: text} }
func Failed(err error) Outcome        { return Outcome{Kind: OutcomeFailed, Err: err} }
