package blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_Put(t *testing.T) {
	root := t.TempDir()
	s, err := NewFS(root)
	require.NoError(t, err)

	loc, err := s.Put(context.Background(), "reports/2024-01-01.csv", strings.NewReader("ID\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "reports", "2024-01-01.csv"), loc)

	b, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "ID\n", string(b))
}

func TestFS_RejectsTraversal(t *testing.T) {
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", "../x.csv", "/etc/passwd"} {
		_, err := s.Put(context.Background(), key, strings.NewReader("x"), "")
		assert.Error(t, err, key)
	}
}

type recordingTransport struct {
	mu   sync.Mutex
	reqs []*http.Request
	body [][]byte
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var b []byte
	if req.Body != nil {
		b, _ = io.ReadAll(req.Body)
	}
	rt.mu.Lock()
	rt.reqs = append(rt.reqs, req)
	rt.body = append(rt.body, b)
	rt.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{"Etag": {`"etag"`}},
		Request:    req,
	}, nil
}

func TestS3_Put(t *testing.T) {
	rt := &recordingTransport{}
	s, err := NewS3(context.Background(), S3Config{
		Bucket:          "penguin-reports",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: rt},
	})
	require.NoError(t, err)

	loc, err := s.Put(context.Background(), "penguin_report.csv", strings.NewReader("ID,Last Seen\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "s3://penguin-reports/penguin_report.csv", loc)

	require.Len(t, rt.reqs, 1)
	assert.Equal(t, http.MethodPut, rt.reqs[0].Method)
	assert.Equal(t, "/penguin-reports/penguin_report.csv", rt.reqs[0].URL.Path)
	assert.Equal(t, "text/csv", rt.reqs[0].Header.Get("Content-Type"))
	assert.Contains(t, string(rt.body[0]), "ID,Last Seen")
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.Error(t, err)
}
