package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"iptv-check/work/logger"
)

// MinCompressSize is the smallest body worth compressing. Status and
// history documents below it go out as is.
const MinCompressSize = 1024

var encoderPool = sync.Pool{
	New: func() any {
		gz, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return gz
	},
}

// bufferedResponse collects a handler's status and body so the encoding
// can be chosen once the size is known.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// Compress buffers the JSON response of next and gzips it when the client
// accepts gzip and the body is at least MinCompressSize bytes.
func Compress(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buf := &bufferedResponse{header: w.Header()}
		next(buf, r)
		if buf.status == 0 {
			buf.status = http.StatusOK
		}

		// caches must key on the encoding even when this reply is plain
		w.Header().Add("Vary", "Accept-Encoding")

		if !shouldCompress(r, buf) {
			w.Header().Set("Content-Length", strconv.Itoa(buf.body.Len()))
			w.WriteHeader(buf.status)
			w.Write(buf.body.Bytes())
			return
		}

		var out bytes.Buffer
		gz := encoderPool.Get().(*gzip.Writer)
		gz.Reset(&out)
		_, err := gz.Write(buf.body.Bytes())
		if err == nil {
			err = gz.Close()
		}
		encoderPool.Put(gz)

		if err != nil {
			logger.Error("{middleware - Compress} %s %s: %v", r.Method, r.URL.Path, err)
			w.Header().Set("Content-Length", strconv.Itoa(buf.body.Len()))
			w.WriteHeader(buf.status)
			w.Write(buf.body.Bytes())
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
		w.WriteHeader(buf.status)
		w.Write(out.Bytes())
	}
}

func shouldCompress(r *http.Request, buf *bufferedResponse) bool {
	switch {
	case r.Method == http.MethodHead:
		return false
	case buf.status == http.StatusNoContent || buf.status == http.StatusNotModified:
		return false
	case buf.body.Len() < MinCompressSize:
		return false
	case buf.header.Get("Content-Encoding") != "":
		return false
	}
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}
