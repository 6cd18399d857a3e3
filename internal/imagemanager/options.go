package imagemanager

import "fmt"

// DeliveryMode trades image quality against latency.
type DeliveryMode int

const (
	// DeliveryOpportunistic returns the best image available without
	// extra work.
	DeliveryOpportunistic DeliveryMode = iota
	// DeliveryHighQuality always decodes at full quality.
	DeliveryHighQuality
	// DeliveryFastFormat favours speed; the result may be degraded.
	DeliveryFastFormat
)

var deliveryModeNames = map[DeliveryMode]string{
	DeliveryOpportunistic: "opportunistic",
	DeliveryHighQuality:   "highQuality",
	DeliveryFastFormat:    "fast",
}

func (d DeliveryMode) String() string {
	if s, ok := deliveryModeNames[d]; ok {
		return s
	}
	return fmt.Sprintf("DeliveryMode(%d)", int(d))
}

// ParseDeliveryMode parses the String form. Empty selects opportunistic.
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	if s == "" {
		return DeliveryOpportunistic, nil
	}
	for mode, name := range deliveryModeNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown delivery mode %q", s)
}

// ResizeMode controls how strictly the target size is honoured.
type ResizeMode int

const (
	// ResizeNone returns the image at its natural size.
	ResizeNone ResizeMode = iota
	// ResizeFast may return an image somewhat larger than requested.
	ResizeFast
	// ResizeExact returns exactly the requested dimensions.
	ResizeExact
)

var resizeModeNames = map[ResizeMode]string{
	ResizeNone:  "none",
	ResizeFast:  "fast",
	ResizeExact: "exact",
}

func (r ResizeMode) String() string {
	if s, ok := resizeModeNames[r]; ok {
		return s
	}
	return fmt.Sprintf("ResizeMode(%d)", int(r))
}

// ParseResizeMode parses the String form. Empty selects fast.
func ParseResizeMode(s string) (ResizeMode, error) {
	if s == "" {
		return ResizeFast, nil
	}
	for mode, name := range resizeModeNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown resize mode %q", s)
}

// FetchOptions are passed through to the provider. They are not part of
// the fingerprint: a request that coalesces onto an in-flight fetch gets
// the options of the request that started it.
type FetchOptions struct {
	DeliveryMode         DeliveryMode
	ResizeMode           ResizeMode
	NetworkAccessAllowed bool

	// ProgressHandler receives this request's progress on the delivery
	// goroutine, in addition to any asset observers.
	ProgressHandler ProgressFunc
}

// DefaultFetchOptions allows network access and fast resizing.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{
		DeliveryMode:         DeliveryOpportunistic,
		ResizeMode:           ResizeFast,
		NetworkAccessAllowed: true,
	}
}
