package models

import (
	"fmt"
	"strings"
)

// ChatMessage is one conversation turn sent to a provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidRole reports whether a role is accepted by the completion clients.
// Anything else is dropped during sanitization.
func ValidRole(role string) bool {
	switch role {
	case "system", "user", "assistant":
		return true
	}
	return false
}

// CompletionStatus is the provider-side lifecycle state of an asynchronous
// completion.
type CompletionStatus string

const (
	StatusQueued         CompletionStatus = "queued"
	StatusInProgress     CompletionStatus = "in_progress"
	StatusCompleted      CompletionStatus = "completed"
	StatusFailed         CompletionStatus = "failed"
	StatusCancelled      CompletionStatus = "cancelled"
	StatusExpired        CompletionStatus = "expired"
	StatusRequiresAction CompletionStatus = "requires_action"
)

// Terminal reports whether polling should stop at this status.
// requires_action is terminal because tool round-trips are unsupported.
func (s CompletionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired, StatusRequiresAction:
		return true
	}
	return false
}

// ProviderKind is the typed provider variant, parsed once at the boundary.
type ProviderKind string

const (
	ProviderOpenAI ProviderKind = "openai"
	ProviderGoogle ProviderKind = "google"
)

// ProviderRef carries the provider variant together with its model string.
type ProviderRef struct {
	Kind  ProviderKind
	Model string
}

// ParseProviderRef parses the "provider:model" boundary format into a typed
// reference. Dispatch deeper in the system works off the typed value only.
func ParseProviderRef(s string) (ProviderRef, error) {
	kind, model, ok := strings.Cut(s, ":")
	if !ok || model == "" {
		return ProviderRef{}, fmt.Errorf("invalid provider reference %q (want provider:model)", s)
	}
	switch ProviderKind(kind) {
	case ProviderOpenAI, ProviderGoogle:
		return ProviderRef{Kind: ProviderKind(kind), Model: model}, nil
	}
	return ProviderRef{}, fmt.Errorf("unknown provider %q", kind)
}

// Attachment is a local file offered to a provider alongside a request.
type Attachment struct {
	Filename    string
	MimeType    string
	ContentHash string
	Data        []byte
	Text        string // extracted text, kept for providers without file search
}

// UploadedFileRef records a provider-side file created from local bytes.
// Reused by content hash so identical bytes are never uploaded twice.
type UploadedFileRef struct {
	LocalContentHash    string
	RemoteFileID        string
	Label               string
	Type                string
	AllowedForInference bool
}
