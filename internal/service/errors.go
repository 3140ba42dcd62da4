package service

import "errors"

var (
	// ErrMissingIdentity is returned when neither an email nor a phone number is provided.
	ErrMissingIdentity = errors.New("At least one of email or phoneNumber must be provided")
	// ErrLinkCycle is returned when following linked ids never reaches a primary.
	ErrLinkCycle = errors.New("contact linkage forms a cycle")
	// ErrDanglingLink is returned when a linked id points at no live contact.
	ErrDanglingLink = errors.New("contact links to a missing contact")
	// ErrPrimaryNotInCluster is returned when a cluster read does not contain its own primary.
	ErrPrimaryNotInCluster = errors.New("cluster does not contain its primary")
)
