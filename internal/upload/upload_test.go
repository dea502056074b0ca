package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "imgbot/pkg/logx"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func freeImageServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "k3y", r.FormValue("key"))
		assert.Equal(t, "upload", r.FormValue("action"))
		assert.Equal(t, "json", r.FormValue("format"))

		f, hdr, err := r.FormFile("source")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		got, _ := io.ReadAll(f)
		assert.Equal(t, pngHeader, got)
		assert.Equal(t, "image.jpg", hdr.Filename)

		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFreeImage(srv *httptest.Server) *FreeImage {
	return NewFreeImage(FreeImageConfig{Endpoint: srv.URL, APIKey: "k3y"}, 5*time.Second, logx.Nop())
}

func TestFreeImageSuccess(t *testing.T) {
	srv := freeImageServer(t, http.StatusOK, `{"status_code":200,"success":{"message":"image uploaded","code":200},"image":{"url":"https://iili.io/abc.png"}}`)

	url, err := newFreeImage(srv).Upload(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "https://iili.io/abc.png", url)
}

func TestFreeImageFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		msg    string
	}{
		"http error":      {http.StatusBadRequest, `{"status_code":400,"error":{"message":"Invalid API v1 key."}}`, "status 400"},
		"not successful":  {http.StatusOK, `{"status_code":400,"error":{"message":"Duplicated upload"}}`, "Duplicated upload"},
		"success false":   {http.StatusOK, `{"success":false}`, "unsuccessful"},
		"no url":          {http.StatusOK, `{"success":true,"image":{}}`, "no image url"},
		"malformed body":  {http.StatusOK, `<html>`, "decode"},
		"server overload": {http.StatusServiceUnavailable, ``, "status 503"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := freeImageServer(t, tc.status, tc.body)
			_, err := newFreeImage(srv).Upload(context.Background(), pngHeader)
			require.ErrorIs(t, err, ErrUpstream)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestFreeImageTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := newFreeImage(srv).Upload(context.Background(), pngHeader)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestFreeImageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	up := NewFreeImage(FreeImageConfig{Endpoint: srv.URL}, 50*time.Millisecond, logx.Nop())
	_, err := up.Upload(context.Background(), pngHeader)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestFreeImageRejectsEmpty(t *testing.T) {
	up := NewFreeImage(FreeImageConfig{}, 0, logx.Nop())
	_, err := up.Upload(context.Background(), nil)
	require.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, DefaultFreeImageEndpoint, up.endpoint)
}

type fakePutter struct {
	in  *s3.PutObjectInput
	err error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Upload(t *testing.T) {
	p := &fakePutter{}
	up := newS3(p, S3Config{Bucket: "imgs", PublicBaseURL: "https://cdn.example.com/"}, 0, logx.Nop())

	url, err := up.Upload(context.Background(), pngHeader)
	require.NoError(t, err)

	require.NotNil(t, p.in)
	key := aws.ToString(p.in.Key)
	assert.Equal(t, "imgs", aws.ToString(p.in.Bucket))
	assert.Equal(t, "image/png", aws.ToString(p.in.ContentType))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Len(t, strings.TrimSuffix(key, ".png"), 36)
	assert.Equal(t, "https://cdn.example.com/"+key, url)
}

func TestS3UploadFailure(t *testing.T) {
	up := newS3(&fakePutter{err: errors.New("AccessDenied")}, S3Config{Bucket: "imgs", PublicBaseURL: "https://cdn"}, 0, logx.Nop())
	_, err := up.Upload(context.Background(), pngHeader)
	require.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestNewProvider(t *testing.T) {
	up, err := New(context.Background(), Config{}, logx.Nop())
	require.NoError(t, err)
	assert.IsType(t, &FreeImage{}, up)

	_, err = New(context.Background(), Config{Provider: "ftp"}, logx.Nop())
	require.Error(t, err)

	_, err = New(context.Background(), Config{Provider: "s3"}, logx.Nop())
	require.Error(t, err)
}
