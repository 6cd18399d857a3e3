package imagemanager

import (
	"errors"
	"image"
	"strings"
)

// Source records where a response's content came from.
type Source uint8

const (
	// SourceLocal is content read from local storage or a local cache.
	SourceLocal Source = 1 << iota
	// SourceRemote is content downloaded over the network.
	SourceRemote
)

// Has reports whether all bits of flag are set.
func (s Source) Has(flag Source) bool {
	return s&flag == flag
}

func (s Source) String() string {
	var parts []string
	if s.Has(SourceLocal) {
		parts = append(parts, "local")
	}
	if s.Has(SourceRemote) {
		parts = append(parts, "remote")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Response is a provider's successful result. Image is set for image
// requests, Data for data requests.
type Response struct {
	Image      image.Image
	Data       []byte
	Format     string
	IsDegraded bool
	Source     Source
}

// Result is the terminal outcome delivered to each observer of a request.
// Exactly one of Response and Err is set.
type Result struct {
	RequestID RequestID
	Response  *Response
	Err       error
}

// Succeeded reports whether the request produced a response.
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// Cancelled reports whether the request was cancelled.
func (r Result) Cancelled() bool {
	return errors.Is(r.Err, ErrCancelled)
}

// ResultFunc receives a request's terminal outcome.
type ResultFunc func(Result)
