package crest

import "errors"

var (
	// ErrConfiguration marks a malformed CREST root or resource url.
	ErrConfiguration = errors.New("crest: invalid configuration")
	// ErrTimeout marks a hop that exceeded its timeout.
	ErrTimeout = errors.New("crest: service timeout")
	// ErrTransport marks a hop that failed below HTTP.
	ErrTransport = errors.New("crest: transport failure")
	// ErrProtocol marks an empty body or a body that is not a JSON object.
	ErrProtocol = errors.New("crest: unexpected response")

	// ErrLinkNotFound marks a path segment missing from the current document.
	ErrLinkNotFound = errors.New("crest: endpoint not found")
	// ErrLeafReached marks a terminal value found while path segments remain.
	ErrLeafReached = errors.New("crest: leaf reached before end of path")
	// ErrInvalidLink marks a link whose href is not an absolute http(s) url.
	ErrInvalidLink = errors.New("crest: invalid link")
	// ErrWalkTooDeep marks a path longer than MaxWalkDepth.
	ErrWalkTooDeep = errors.New("crest: walk too deep")
)

// IsFetchFailure reports whether err came from a failed hop rather than from the
// shape of the resource graph.
func IsFetchFailure(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport) || errors.Is(err, ErrProtocol)
}

// IsGraphFailure reports whether err means the graph had no value at the requested path.
func IsGraphFailure(err error) bool {
	return errors.Is(err, ErrLinkNotFound) || errors.Is(err, ErrLeafReached) ||
		errors.Is(err, ErrInvalidLink) || errors.Is(err, ErrWalkTooDeep)
}
