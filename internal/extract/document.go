package extract

import (
	"context"
	"fmt"
	"log"
	"strings"

	"coursemind/internal/coursestore"
	"coursemind/internal/doctext"
	"coursemind/internal/models"
)

// DocCache is the durable extracted-text store keyed by content hash. Keying
// by hash makes a timemodified check unnecessary: changed content means a
// new hash, which simply misses.
type DocCache interface {
	GetByHash(ctx context.Context, contentHash string) (string, bool)
	Put(ctx context.Context, contentHash, text string)
}

// DocChain extracts plain text from binary documents.
type DocChain interface {
	Extract(ctx context.Context, doc doctext.Document) (string, error)
}

// DocumentExtractor renders files attached to resource activities (PDF,
// Office). It also registers extracted documents for provider upload when
// file-upload mode is on.
type DocumentExtractor struct {
	store    Store
	docCache DocCache
	chain    DocChain
}

func NewDocumentExtractor(store Store, docCache DocCache, chain DocChain) *DocumentExtractor {
	return &DocumentExtractor{store: store, docCache: docCache, chain: chain}
}

func (e *DocumentExtractor) Kind() models.SourceKind { return models.KindDocument }

func (e *DocumentExtractor) Extract(ctx context.Context, req Request) (Section, error) {
	mods, err := e.store.Modules(ctx, req.CourseID, models.KindDocument)
	if err != nil {
		return Section{}, fmt.Errorf("failed to list document resources: %w", err)
	}

	var b strings.Builder
	for _, m := range mods {
		if !wantModule(req.Config, m) {
			continue
		}
		files, err := e.store.FilesByModule(ctx, m.ID)
		if err != nil {
			log.Printf("⚠️  [EXTRACT] files for module %d unreadable, skipping: %v", m.ID, err)
			continue
		}
		for _, file := range files {
			if text := e.fileText(ctx, file, req); text != "" {
				b.WriteString("## " + file.Filename + "\n")
				b.WriteString(text)
				b.WriteString("\n\n")
			}
		}
	}
	return Section{Title: "Course Documents", Body: strings.TrimSpace(b.String())}, nil
}

func (e *DocumentExtractor) fileText(ctx context.Context, file coursestore.StoredFile, req Request) string {
	probe := doctext.Document{Filename: file.Filename, MimeType: file.MimeType}
	if probe.Format() == doctext.FormatUnknown {
		return ""
	}

	text, cached := e.docCache.GetByHash(ctx, file.ContentHash)
	needBytes := !cached || (req.Config.FileUploadMode && req.Uploads != nil)

	var data []byte
	if needBytes {
		var err error
		data, err = file.ReadBytes()
		if err != nil {
			log.Printf("⚠️  [EXTRACT] file %s unreadable, skipping: %v", file.Filename, err)
			return text
		}
	}

	if !cached {
		var err error
		text, err = e.chain.Extract(ctx, doctext.Document{
			Filename: file.Filename,
			MimeType: file.MimeType,
			Data:     data,
		})
		if err != nil {
			log.Printf("⚠️  [EXTRACT] document %s extraction failed, skipping: %v", file.Filename, err)
			return ""
		}
		e.docCache.Put(ctx, file.ContentHash, text)
	}

	if req.Config.FileUploadMode && req.Uploads != nil && text != "" {
		*req.Uploads = append(*req.Uploads, UploadCandidate{
			Filename:    file.Filename,
			MimeType:    file.MimeType,
			ContentHash: file.ContentHash,
			Text:        text,
			Data:        data,
		})
	}
	return text
}
