package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SourceKind identifies a category of course content with its own
// extractor and cache namespace.
type SourceKind string

const (
	KindPage       SourceKind = "page"
	KindGlossary   SourceKind = "glossary"
	KindH5P        SourceKind = "h5p"
	KindDocument   SourceKind = "document" // PDF and Office files attached to resources
	KindForum      SourceKind = "forum"
	KindQuiz       SourceKind = "quiz"
	KindBook       SourceKind = "book"
	KindAssignment SourceKind = "assign"
	KindLabel      SourceKind = "label"
	KindURL        SourceKind = "url"
	KindLesson     SourceKind = "lesson"
	KindLink       SourceKind = "weblink" // external links, ingested separately
	KindAggregate  SourceKind = "aggregate"
)

// AllSourceKinds lists the extractable kinds in the order sections are
// assembled. KindLink and KindAggregate are not extractor kinds.
var AllSourceKinds = []SourceKind{
	KindPage, KindGlossary, KindH5P, KindDocument, KindForum,
	KindQuiz, KindBook, KindAssignment, KindLabel, KindURL, KindLesson,
}

// PolicyMode controls what the model may do when course content does not
// answer the question.
type PolicyMode string

const (
	PolicyStrict          PolicyMode = "strict"
	PolicyInternetAllowed PolicyMode = "internet_allowed"
)

// SourceConfig is the per-block content-source configuration. It is owned
// by the caller and immutable for the duration of one context build.
type SourceConfig struct {
	ShareContext     bool
	InternetFallback bool
	FileUploadMode   bool

	// Selective restricts extraction to ActivityIDs instead of all
	// activities of enabled kinds.
	Selective   bool
	ActivityIDs []int64

	Enabled map[SourceKind]bool
}

// DefaultSourceConfig enables every kind, external links included, with
// sharing on.
func DefaultSourceConfig() SourceConfig {
	enabled := make(map[SourceKind]bool, len(AllSourceKinds)+1)
	for _, k := range AllSourceKinds {
		enabled[k] = true
	}
	enabled[KindLink] = true
	return SourceConfig{
		ShareContext: true,
		Enabled:      enabled,
	}
}

// KindEnabled reports whether a kind is switched on.
func (c SourceConfig) KindEnabled(kind SourceKind) bool {
	return c.Enabled[kind]
}

// Includes applies the inclusion predicate for one activity: in selective
// mode only allow-listed course module IDs pass, otherwise the kind flag
// decides.
func (c SourceConfig) Includes(kind SourceKind, cmID int64) bool {
	if !c.KindEnabled(kind) {
		return false
	}
	if !c.Selective {
		return true
	}
	for _, id := range c.ActivityIDs {
		if id == cmID {
			return true
		}
	}
	return false
}

// PolicyMode derives the policy marker stored with cached aggregates.
func (c SourceConfig) PolicyMode() PolicyMode {
	if c.InternetFallback {
		return PolicyInternetAllowed
	}
	return PolicyStrict
}

// Hash returns a stable digest of the configuration, used as part of the
// aggregate cache key so config changes miss the cache.
func (c SourceConfig) Hash() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "share=%t;net=%t;upload=%t;sel=%t;", c.ShareContext, c.InternetFallback, c.FileUploadMode, c.Selective)

	ids := append([]int64(nil), c.ActivityIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(&sb, "a%d,", id)
	}

	kinds := make([]string, 0, len(c.Enabled))
	for k, on := range c.Enabled {
		if on {
			kinds = append(kinds, string(k))
		}
	}
	sort.Strings(kinds)
	sb.WriteString(strings.Join(kinds, ","))

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:8])
}
