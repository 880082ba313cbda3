package workflow

import "errors"

var (
	// ErrAlreadyStarted indicates Start was called outside the Idle state.
	ErrAlreadyStarted = errors.New("workflow already started")
	// ErrNotLive indicates capture was requested outside the Live state.
	ErrNotLive = errors.New("workflow is not live")
	// ErrNotReviewing indicates save or rescan was requested outside Review.
	ErrNotReviewing = errors.New("workflow is not in review")
)
