package artifact

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/hellopet-e2e/internal/config"
)

func TestFailureName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 123_000_000, time.FixedZone("KST", 9*3600))
	got := FailureName("home-about", at)
	assert.Equal(t, "home-about-failure-2024-03-09T05-05-07-123Z.png", got)
	assert.Equal(t, "full-page-2024-03-09T05-05-07-123Z.png", FullPageName(at))
	assert.Equal(t, "element-2024-03-09T05-05-07-123Z.png", ElementName(at))
}

func TestScreenshotName(t *testing.T) {
	at := time.Date(2024, 3, 9, 5, 5, 7, 0, time.UTC)
	assert.Equal(t, "TestAuth-login-failure-2024-03-09T05-05-07-000Z.png", ScreenshotName("TestAuth/login", true, at))
	assert.Equal(t, "TestAuth-login-final-2024-03-09T05-05-07-000Z.png", ScreenshotName("TestAuth/login", false, at))
}

// A passing test under mode "on" still gets its end-of-test screenshot, named
// apart from a failure's.
func TestScreenshotName_ModeOnKeepsPasses(t *testing.T) {
	at := time.Date(2024, 3, 9, 5, 5, 7, 0, time.UTC)
	require.True(t, ShouldRetain(config.ModeOn, false, 0))
	name := ScreenshotName("TestHome", false, at)
	assert.NotContains(t, name, "-failure-")
	assert.True(t, strings.HasPrefix(name, "TestHome-final-"))
}

var failureNamePattern = regexp.MustCompile(`^[^/:.]+-failure-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z\.png$`)

func testFailureName_Shape(t *rapid.T) {
	name := rapid.StringMatching(`[A-Za-z][A-Za-z0-9_/ ]{0,30}`).Draw(t, "name")
	sec := rapid.Int64Range(0, 4102444800).Draw(t, "sec")
	ms := rapid.Int64Range(0, 999).Draw(t, "ms")
	got := FailureName(name, time.Unix(sec, ms*int64(time.Millisecond)))
	if !failureNamePattern.MatchString(got) {
		t.Fatalf("FailureName(%q) = %q", name, got)
	}
	if strings.Count(got, ".") != 1 {
		t.Fatalf("only the extension may contain a dot: %q", got)
	}
}

func TestFailureName_Shape(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testFailureName_Shape)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "TestNavigation-about_link", Sanitize("TestNavigation/about_link"))
	assert.Equal(t, "a-b-c", Sanitize("a b:c"))
}

func TestStorePaths(t *testing.T) {
	s := NewStore("out")
	assert.Equal(t, filepath.Join("out", "screenshots", "x.png"), s.ScreenshotPath("x.png"))
	assert.Equal(t, filepath.Join("out", "videos"), s.VideoDir())
	assert.Equal(t, filepath.Join("out", "traces", "TestA-sub-attempt1.zip"), s.TracePath("TestA/sub", 1))
}

func TestStoreFiles(t *testing.T) {
	s := NewStore(t.TempDir())
	files, err := s.Files()
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, s.Ensure())
	require.NoError(t, os.WriteFile(s.ScreenshotPath("a.png"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(s.TracePath("TestB", 0), []byte("b"), 0o644))

	files, err = s.Files()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"screenshots/a.png", "traces/TestB-attempt0.zip"}, files)

	missing := NewStore(filepath.Join(t.TempDir(), "nope"))
	files, err = missing.Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestStoreFiles_SkipsReports(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Ensure())
	require.NoError(t, os.WriteFile(s.ScreenshotPath("a.png"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root, "results.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root, "junit.xml"), []byte("<x/>"), 0o644))

	files, err := s.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"screenshots/a.png"}, files)
}

func TestStoreReset(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Ensure())
	require.NoError(t, os.WriteFile(s.ScreenshotPath("stale.png"), []byte("a"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(s.VideoDir(), "TestA"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.VideoDir(), "TestA", "v.webm"), []byte("v"), 0o644))
	report := filepath.Join(s.Root, "results.json")
	require.NoError(t, os.WriteFile(report, []byte("{}"), 0o644))

	require.NoError(t, s.Reset())
	files, err := s.Files()
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.FileExists(t, report)

	// Resetting an empty or missing store is fine.
	require.NoError(t, s.Reset())
	require.NoError(t, NewStore(filepath.Join(t.TempDir(), "nope")).Reset())
}

func TestPolicy(t *testing.T) {
	cases := []struct {
		mode    config.Mode
		failed  bool
		attempt int
		capture bool
		retain  bool
	}{
		{config.ModeOff, true, 0, false, false},
		{config.ModeOn, false, 0, true, true},
		{config.ModeOnlyOnFailure, false, 0, true, false},
		{config.ModeOnlyOnFailure, true, 0, true, true},
		{config.ModeRetainOnFailure, false, 2, true, false},
		{config.ModeRetainOnFailure, true, 2, true, true},
		{config.ModeOnFirstRetry, true, 0, false, false},
		{config.ModeOnFirstRetry, false, 1, true, true},
		{config.ModeOnFirstRetry, true, 2, false, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.capture, ShouldCapture(c.mode, c.attempt), "capture %s attempt %d", c.mode, c.attempt)
		assert.Equal(t, c.retain, ShouldRetain(c.mode, c.failed, c.attempt), "retain %s failed=%t attempt %d", c.mode, c.failed, c.attempt)
	}
}

func testRetainImpliesCapture(t *rapid.T) {
	mode := rapid.SampledFrom([]config.Mode{
		config.ModeOff, config.ModeOn, config.ModeOnlyOnFailure,
		config.ModeRetainOnFailure, config.ModeOnFirstRetry,
	}).Draw(t, "mode")
	failed := rapid.Bool().Draw(t, "failed")
	attempt := rapid.IntRange(0, 5).Draw(t, "attempt")
	if ShouldRetain(mode, failed, attempt) && !ShouldCapture(mode, attempt) {
		t.Fatalf("%s keeps an artifact it never recorded (failed=%t attempt=%d)", mode, failed, attempt)
	}
}

func TestRetainImpliesCapture(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testRetainImpliesCapture)
}

// testPublisher returns a publisher backed by an in-memory S3 server.
func testPublisher(t *testing.T, bucket, prefix string) (*Publisher, *s3.Client) {
	t.Helper()

	faker := gofakes3.New(s3mem.New())
	ts := httptest.NewServer(faker.Server())
	t.Cleanup(ts.Close)

	ctx := context.Background()
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(ts.URL)
		o.UsePathStyle = true
	})
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	return NewPublisherFromClient(client, bucket, prefix, ts.URL+"/"+bucket), client
}

func TestPublisherKey(t *testing.T) {
	p := NewPublisherFromClient(nil, "b", "/e2e/", "https://cdn.example/")
	assert.Equal(t, "e2e/run-1/screenshots/a.png", p.Key("run-1", "screenshots/a.png"))
	assert.Equal(t, "https://cdn.example/e2e/x", p.PublicURL("/e2e/x"))

	bare := NewPublisherFromClient(nil, "b", "", "")
	assert.Equal(t, "traces/t.zip", bare.Key("", "traces/t.zip"))
}

func TestPublishStore(t *testing.T) {
	p, client := testPublisher(t, "artifacts", "e2e")

	store := NewStore(t.TempDir())
	require.NoError(t, store.Ensure())
	require.NoError(t, os.WriteFile(store.ScreenshotPath("home-failure.png"), []byte("png-bytes"), 0o644))

	ctx := context.Background()
	links, err := p.PublishStore(ctx, store, "run-42")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.True(t, strings.HasSuffix(links["screenshots/home-failure.png"], "/artifacts/e2e/run-42/screenshots/home-failure.png"))

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String("artifacts"),
		Key:    aws.String("e2e/run-42/screenshots/home-failure.png"),
	})
	require.NoError(t, err)
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
}

func TestRunPublisher(t *testing.T) {
	p, _ := testPublisher(t, "artifacts", "")

	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Ensure())
	require.NoError(t, os.WriteFile(store.TracePath("TestFeed", 1), []byte("zip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results.json"), []byte("{}"), 0o644))

	links, err := RunPublisher{Publisher: p}.Publish(context.Background(), "run-7", dir)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Contains(t, links, "traces/TestFeed-attempt1.zip")
}

func TestNewPublisher_FromConfig(t *testing.T) {
	p, err := NewPublisher(context.Background(), config.ArtifactConfig{
		Bucket:          "b",
		Prefix:          "p",
		Endpoint:        "http://127.0.0.1:9",
		Region:          "auto",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
		PublicURL:       "http://127.0.0.1:9/b",
	})
	require.NoError(t, err)
	assert.Equal(t, "p/r/x.png", p.Key("r", "x.png"))
	assert.Equal(t, "http://127.0.0.1:9/b/p/r/x.png", p.PublicURL("p/r/x.png"))
}
