package domain

import "regexp"

// AttachmentKind is the coarse attachment category the state machine cares
// about. Anything else counts as "no attachment" for retry purposes.
type AttachmentKind string

const (
	AttachmentImage   AttachmentKind = "image"
	AttachmentFile    AttachmentKind = "file"
	AttachmentUnknown AttachmentKind = "unknown"
)

// Attachment is a file reference carried by an inbound message.
type Attachment struct {
	URL  string
	Name string
	Kind AttachmentKind
}

// Evaluable reports whether the attachment can be handed to the classifier.
// Unrecognized media kinds and attachments without a URL are treated exactly
// like a missing attachment.
func (a *Attachment) Evaluable() bool {
	if a == nil || a.URL == "" {
		return false
	}
	return a.Kind == AttachmentImage || a.Kind == AttachmentFile
}

// Event is the canonical form every recognized webhook payload normalizes to.
type Event struct {
	LeadID   int64
	Incoming bool
	Text     string

	// Attachment carried inline by the payload, if any.
	Attachment *Attachment

	// NeedsLookup marks salesbot-trigger events, which never carry an
	// attachment inline; the latest one must be fetched from the lead's
	// event/notes feed instead.
	NeedsLookup bool

	// Source names the payload shape that matched, for logging.
	Source string
}

var trackingRefPattern = regexp.MustCompile(`\[REF:([A-Za-z0-9_-]+)\]`)

// ExtractTrackingRef pulls the ad-attribution tracking token out of message
// text. Returns "" when no [REF:xxx] marker is present.
func ExtractTrackingRef(text string) string {
	m := trackingRefPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
