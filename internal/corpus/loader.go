// Package corpus reads the source documents of the retrieval corpus.
package corpus

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ragqa/internal/domain"
)

// Extension is the file extension of corpus documents.
const Extension = ".txt"

// Load reads every *.txt file directly inside dir, sorted by filename.
// Unreadable files are skipped and a missing directory yields no documents.
func Load(dir string, logger *slog.Logger) []domain.Document {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("failed to read corpus directory", "dir", dir, "error", err)
		return nil
	}

	var docs []domain.Document
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Extension) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable document", "path", path, "error", err)
			continue
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}
		docs = append(docs, domain.Document{Filename: e.Name(), Content: content, Path: path})
	}
	// os.ReadDir already sorts by name; keep the guarantee explicit.
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	logger.Info("loaded documents", "dir", dir, "count", len(docs))
	return docs
}

// Fingerprint hashes the document set (filenames, sizes and content digests)
// so caches built from a different corpus can be detected.
func Fingerprint(docs []domain.Document) string {
	h := sha256.New()
	var buf [8]byte
	for _, d := range docs {
		h.Write([]byte(d.Filename))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(len(d.Content)))
		h.Write(buf[:])
		sum := sha256.Sum256([]byte(d.Content))
		h.Write(sum[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
