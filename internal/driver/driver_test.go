package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/config"
	"github.com/kuitang/hellopet-e2e/internal/errs"
)

func TestBound(t *testing.T) {
	got, err := bound(context.Background(), 3*time.Second)
	if err != nil || got != 3*time.Second {
		t.Fatalf("no deadline: bound = %s, %v", got, err)
	}
	got, err = bound(context.Background(), 0)
	if err != nil || got != 0 {
		t.Fatalf("zero want, no deadline: bound = %s, %v", got, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	got, err = bound(ctx, 10*time.Second)
	if err != nil || got > 200*time.Millisecond || got <= 0 {
		t.Fatalf("deadline should cap: bound = %s, %v", got, err)
	}
	got, err = bound(ctx, 0)
	if err != nil || got <= 0 {
		t.Fatalf("zero want with deadline should take the deadline: %s, %v", got, err)
	}

	done, cancelDone := context.WithCancel(context.Background())
	cancelDone()
	if _, err := bound(done, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled ctx: err = %v", err)
	}
}

func TestSleep(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("Sleep returned early")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep on cancelled ctx = %v", err)
	}
}

func TestLaunchOptions(t *testing.T) {
	dev, _ := config.Variant(config.Dev)
	opts := LaunchOptions(dev)
	if opts.Headless == nil || *opts.Headless {
		t.Fatal("dev should launch headed")
	}
	if opts.SlowMo == nil || *opts.SlowMo != 300 {
		t.Fatalf("dev slowMo = %v, want 300", opts.SlowMo)
	}
	if len(opts.Args) != 3 || opts.Args[0] != "--auto-open-devtools-for-tabs" {
		t.Fatalf("dev args = %v", opts.Args)
	}

	fast, _ := config.Variant(config.Fast)
	opts = LaunchOptions(fast)
	if opts.SlowMo != nil {
		t.Fatalf("fast should not slow down, got %v", *opts.SlowMo)
	}
	if opts.Headless == nil || !*opts.Headless {
		t.Fatal("fast should be headless")
	}
}

func TestContextOptionsFor(t *testing.T) {
	ci, _ := config.Variant(config.CI)
	o := ContextOptionsFor(ci, ContextOptions{})
	if *o.BaseURL != "https://hello-pet.my" || *o.Locale != "ko-KR" || *o.TimezoneId != "Asia/Seoul" {
		t.Fatalf("context options = %+v", o)
	}
	if o.RecordVideo != nil {
		t.Fatal("video should be off without a dir")
	}
	o = ContextOptionsFor(ci, ContextOptions{VideoDir: "out/videos"})
	if o.RecordVideo == nil || o.RecordVideo.Dir != "out/videos" {
		t.Fatalf("RecordVideo = %+v", o.RecordVideo)
	}
}

func TestResolve(t *testing.T) {
	p := Wrap(nil, "http://127.0.0.1:8090/", Timeouts{})
	cases := map[string]string{
		"/about":                "http://127.0.0.1:8090/about",
		"feed":                  "http://127.0.0.1:8090/feed",
		"https://hello-pet.my/": "https://hello-pet.my/",
	}
	for in, want := range cases {
		if got := p.Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

type visibleSet map[string]bool

func (v visibleSet) WaitVisible(_ context.Context, sel string, _ time.Duration) error {
	if v[sel] {
		return nil
	}
	return errors.New("not visible: " + sel)
}

func TestFirstVisible(t *testing.T) {
	page := visibleSet{"#b": true, "#c": true}
	got, err := FirstVisible(context.Background(), page, []string{"#a", "#b", "#c"}, time.Millisecond)
	if err != nil || got != "#b" {
		t.Fatalf("FirstVisible = %q, %v; want #b", got, err)
	}
	_, err = FirstVisible(context.Background(), page, []string{"#x", "#y"}, time.Millisecond)
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("FirstVisible with no match = %v, want NotFound", err)
	}
}
