package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source supplies the raw documents for an ingestion pass.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// DirSource reads every .txt and .md file in Dir.
type DirSource struct {
	Dir string
}

func (s DirSource) Documents(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read docs dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".md":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		docs = append(docs, Document{Name: name, Text: string(data)})
	}
	return docs, nil
}

// StaticSource serves a fixed document set.
type StaticSource []Document

func (s StaticSource) Documents(context.Context) ([]Document, error) {
	return []Document(s), nil
}

// TopicName turns a document file name into a display topic,
// e.g. "saving_money.txt" -> "saving money".
func TopicName(source string) string {
	stem := strings.TrimSuffix(source, filepath.Ext(source))
	return strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(stem))
}
