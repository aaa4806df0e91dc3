// Package s3_test tests the S3-compatible blob store against a stubbed
// transport, keeping the suite offline.
package s3_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autorag/harvester/internal/storage/s3"
)

// captureTransport records the outgoing request and answers 200.
type captureTransport struct {
	req  *http.Request
	body []byte
}

func (c *captureTransport) Do(req *http.Request) (*http.Response, error) {
	c.req = req
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		c.body = b
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

func validConfig() s3.Config {
	return s3.Config{
		AccountID:       "acct-1",
		AccessKeyID:     "key-id",
		SecretAccessKey: "key-secret",
		Bucket:          "test-bucket",
	}
}

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := s3.New(validConfig())
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("ExplicitEndpointWithoutAccountID", func(t *testing.T) {
		cfg := validConfig()
		cfg.AccountID = ""
		cfg.Endpoint = "https://s3.example.com"
		_, err := s3.New(cfg)
		assert.NoError(t, err)
	})

	t.Run("MissingBucket", func(t *testing.T) {
		cfg := validConfig()
		cfg.Bucket = ""
		_, err := s3.New(cfg)
		assert.Error(t, err)
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.SecretAccessKey = ""
		_, err := s3.New(cfg)
		assert.Error(t, err)
	})

	t.Run("MissingAccountIDAndEndpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.AccountID = ""
		_, err := s3.New(cfg)
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	transport := &captureTransport{}
	cfg := validConfig()
	cfg.HTTPClient = transport

	store, err := s3.New(cfg)
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "page_x.html", "text/html", strings.NewReader("<html>r2</html>"))
	require.NoError(t, err)
	assert.Equal(t, "s3://test-bucket/page_x.html", uri)

	require.NotNil(t, transport.req)
	assert.Equal(t, http.MethodPut, transport.req.Method)
	assert.Contains(t, transport.req.URL.Host, "test-bucket")
	assert.Contains(t, transport.req.URL.Host, "acct-1.r2.cloudflarestorage.com")
	assert.True(t, strings.HasSuffix(transport.req.URL.Path, "page_x.html"), "path %q", transport.req.URL.Path)
	assert.Equal(t, "text/html", transport.req.Header.Get("Content-Type"))
	assert.Contains(t, transport.req.Header.Get("Authorization"), "AWS4-HMAC-SHA256")
	assert.Contains(t, transport.req.Header.Get("Authorization"), "/auto/s3/aws4_request")
	assert.Equal(t, "<html>r2</html>", string(transport.body))
}

func TestPutObjectEmptyKey(t *testing.T) {
	store, err := s3.New(validConfig())
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "", "text/html", strings.NewReader("x"))
	assert.Error(t, err)
}
