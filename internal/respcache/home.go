// SPDX-License-Identifier: MIT

package respcache

import (
	"bytes"
	"compress/gzip"

	"github.com/andybalholm/brotli"
)

// HomeEntry is one cached home payload per locale, kept alongside its
// precompressed encodings so the hot path never compresses per request.
type HomeEntry struct {
	Raw    []byte // canonical JSON
	Gzip   []byte
	Brotli []byte
}

// NewHomeEntry compresses raw once with both encoders. Compression errors
// leave the corresponding encoding empty; the server then falls back to
// identity.
func NewHomeEntry(raw []byte, brotliQuality int) HomeEntry {
	e := HomeEntry{Raw: raw}

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(raw); err == nil {
		if err := zw.Close(); err == nil {
			e.Gzip = gz.Bytes()
		}
	}

	var br bytes.Buffer
	bw := brotli.NewWriterLevel(&br, brotliQuality)
	if _, err := bw.Write(raw); err == nil {
		if err := bw.Close(); err == nil {
			e.Brotli = br.Bytes()
		}
	}
	return e
}
