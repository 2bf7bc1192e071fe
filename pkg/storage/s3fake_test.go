package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const testBucket = "trainq-test"

type fakeObject struct {
	data    []byte
	version string
	etag    string
}

// fakeS3 serves path-style GET, HEAD and PUT object requests for one bucket.
// PUT honors If-None-Match: * and If-Match the way S3 conditional writes do.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	puts    int

	// beforePut runs once, under mu, ahead of the next PUT.
	beforePut func(key string)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, ok := strings.CutPrefix(r.URL.Path, "/"+testBucket+"/")
	if !ok {
		http.Error(w, "no such bucket", http.StatusNotFound)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if hook := f.beforePut; hook != nil {
			f.beforePut = nil
			hook(key)
		}
		existing, exists := f.objects[key]
		if (r.Header.Get("If-None-Match") == "*" && exists) ||
			(r.Header.Get("If-Match") != "" && (!exists || existing.etag != r.Header.Get("If-Match"))) {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusPreconditionFailed)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message></Error>`)
			return
		}
		f.puts++
		etag := `"` + strconv.Itoa(f.puts) + `"`
		f.objects[key] = fakeObject{data: body, version: r.Header.Get("X-Amz-Meta-Version"), etag: etag}
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)

	case http.MethodGet, http.MethodHead:
		obj, found := f.objects[key]
		if !found {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
					`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
		if obj.version != "" {
			w.Header().Set("X-Amz-Meta-Version", obj.version)
		}
		if obj.etag != "" {
			w.Header().Set("ETag", obj.etag)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.data)
		}

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// newTestS3Blobs starts a fake S3 endpoint and returns a store wired to it
// through the real SDK client.
func newTestS3Blobs(t *testing.T) (*S3BlobStore, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string]fakeObject)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewS3Client(context.Background(), S3Config{
		Bucket:          testBucket,
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	return NewS3BlobStore(client, testBucket), fake
}
