package workspace

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/makeasinger/producer/internal/client"
)

// Mirror writes human-readable copies of plans and lyrics next to the
// pipeline. It is a best-effort side channel: failures are logged and
// swallowed, and nothing in the pipeline reads state back from it.
type Mirror struct {
	storage  client.StorageClient // nil → local directory fallback
	localDir string
}

func NewMirror(storage client.StorageClient, localDir string) *Mirror {
	return &Mirror{storage: storage, localDir: localDir}
}

// Write stores content under the owner's workspace path. Never returns
// an error; the mirror must not fail the pipeline.
func (m *Mirror) Write(ctx context.Context, ownerID, path, content string) {
	key := fmt.Sprintf("workspace/%s/%s", ownerID, path)

	if m.storage != nil {
		if _, err := m.storage.Upload(ctx, key, bytes.NewReader([]byte(content)), "text/markdown"); err != nil {
			log.Printf("[Workspace] mirror upload failed for %s: %v", key, err)
		}
		return
	}

	full := filepath.Join(m.localDir, ownerID, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		log.Printf("[Workspace] mirror mkdir failed for %s: %v", full, err)
		return
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		log.Printf("[Workspace] mirror write failed for %s: %v", full, err)
	}
}

// Read returns a mirrored file's content. Callers treat any error as
// "no mirror available"; the store remains the source of truth.
func (m *Mirror) Read(ctx context.Context, ownerID, path string) (string, error) {
	if m.storage != nil {
		data, err := m.storage.Download(ctx, fmt.Sprintf("workspace/%s/%s", ownerID, path))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(filepath.Join(m.localDir, ownerID, path))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
