package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
)

// CompressionConfig controls the gzip middleware.
type CompressionConfig struct {
	// MinSize is the smallest response body, in bytes, worth compressing.
	MinSize int
	// Level is the gzip compression level.
	Level int
	// CompressibleTypes lists the content types that get compressed. The
	// admin API only emits JSON and plain text, so the default list is short.
	CompressibleTypes []string
}

// DefaultCompressionConfig returns the settings used by the admin API.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		CompressibleTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
		},
	}
}

// compressWriter buffers the response until it knows whether the body is
// large enough, and of a compressible type, to be worth gzipping. Once the
// decision falls, writes stream directly.
type compressWriter struct {
	http.ResponseWriter
	config  CompressionConfig
	buf     []byte
	code    int
	decided bool
	gz      *gzip.Writer
}

func (cw *compressWriter) WriteHeader(code int) {
	if !cw.decided {
		cw.code = code
	}
}

func (cw *compressWriter) Write(p []byte) (int, error) {
	if cw.decided {
		if cw.gz != nil {
			return cw.gz.Write(p)
		}
		return cw.ResponseWriter.Write(p)
	}

	cw.buf = append(cw.buf, p...)
	if len(cw.buf) > cw.config.MinSize {
		if err := cw.decide(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// decide commits to compressed or plain output and flushes the buffer.
func (cw *compressWriter) decide() error {
	if cw.decided {
		return nil
	}
	cw.decided = true

	if len(cw.buf) >= cw.config.MinSize && cw.compressible() {
		cw.Header().Del("Content-Length")
		cw.Header().Set("Content-Encoding", "gzip")
		cw.Header().Add("Vary", "Accept-Encoding")

		gz, err := gzip.NewWriterLevel(cw.ResponseWriter, cw.config.Level)
		if err != nil {
			gz = gzip.NewWriter(cw.ResponseWriter)
		}
		cw.gz = gz
		cw.ResponseWriter.WriteHeader(cw.code)
		_, err = cw.gz.Write(cw.buf)
		cw.buf = nil
		return err
	}

	cw.ResponseWriter.WriteHeader(cw.code)
	_, err := cw.ResponseWriter.Write(cw.buf)
	cw.buf = nil
	return err
}

func (cw *compressWriter) compressible() bool {
	mediaType := cw.Header().Get("Content-Type")
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	for _, ct := range cw.config.CompressibleTypes {
		if mediaType == ct {
			return true
		}
	}
	return false
}

// finish flushes undecided buffers and closes the gzip stream.
func (cw *compressWriter) finish() {
	if err := cw.decide(); err != nil {
		return
	}
	if cw.gz != nil {
		cw.gz.Close()
		cw.gz = nil
	}
}

func (cw *compressWriter) Flush() {
	cw.decide()
	if cw.gz != nil {
		cw.gz.Flush()
	}
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Compression gzips responses for clients that accept it.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			cw := &compressWriter{
				ResponseWriter: w,
				config:         config,
				code:           http.StatusOK,
				buf:            make([]byte, 0, config.MinSize+1),
			}
			defer cw.finish()

			next.ServeHTTP(cw, r)
		})
	}
}
