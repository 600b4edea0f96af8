package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/hazyhaar/regress/regress/failure"
	"github.com/hazyhaar/regress/regress/scenario"
)

// stubCapturer renders a solid PNG of the requested size.
type stubCapturer struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (s *stubCapturer) Capture(_ context.Context, url string, size scenario.Size, c scenario.CaptureContext) (io.ReadCloser, error) {
	s.mu.Lock()
	s.calls = append(s.calls, url+"@"+size.String())
	s.mu.Unlock()

	if err := s.fail[url+"@"+size.String()]; err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 1, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

// brokenStream fails half-way through.
type brokenStream struct{ sent bool }

func (b *brokenStream) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, "\x89PNG"), nil
	}
	return 0, errors.New("socket closed")
}

func (b *brokenStream) Close() error { return nil }

func testRun(dest string) ([]scenario.Scenario, scenario.RunOptions) {
	scenarios := []scenario.Scenario{
		{Label: "getbootstrap.com", URL: "http://getbootstrap.com"},
		{Label: "getting-started", URL: "http://getbootstrap.com/getting-started/"},
	}
	opts := scenario.RunOptions{
		Dest: dest,
		Viewports: []scenario.Viewport{
			{Name: "phone", Width: 32, Height: 48},
			{Name: "tablet_v", Width: 56, Height: 102},
			{Name: "tablet_h", Width: 102, Height: 76},
		},
	}
	return scenarios, opts
}

func TestCaptureAll_CrossProduct(t *testing.T) {
	dest := t.TempDir()
	scenarios, opts := testRun(dest)
	stub := &stubCapturer{}
	o := New(stub)

	paths, err := o.CaptureAll(context.Background(), scenario.Reference, scenarios, opts)
	if err != nil {
		t.Fatalf("CaptureAll: %v", err)
	}
	if len(paths) != 6 {
		t.Fatalf("paths = %d, want 6", len(paths))
	}

	want := []string{
		"getbootstrap.com-phone.png", "getbootstrap.com-tablet_v.png", "getbootstrap.com-tablet_h.png",
		"getting-started-phone.png", "getting-started-tablet_v.png", "getting-started-tablet_h.png",
	}
	for i, p := range paths {
		if p != filepath.Join(dest, "reference", want[i]) {
			t.Errorf("paths[%d] = %q", i, p)
		}
	}

	entries, err := os.ReadDir(filepath.Join(dest, "reference"))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	sorted := append([]string(nil), want...)
	sort.Strings(sorted)
	if strings.Join(names, ",") != strings.Join(sorted, ",") {
		t.Errorf("files = %v, want %v", names, sorted)
	}

	if len(stub.calls) != 6 {
		t.Errorf("capture calls = %d", len(stub.calls))
	}
}

func TestCaptureAll_DecodablePNG(t *testing.T) {
	dest := t.TempDir()
	scenarios, opts := testRun(dest)

	paths, err := New(&stubCapturer{}).CaptureAll(context.Background(), scenario.Actual, scenarios[:1], opts)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(paths[2])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 102 || cfg.Height != 76 {
		t.Errorf("size = %dx%d, want 102x76", cfg.Width, cfg.Height)
	}
}

func TestCaptureAll_FailFast(t *testing.T) {
	dest := t.TempDir()
	scenarios, opts := testRun(dest)
	cause := errors.New("navigation timeout")
	stub := &stubCapturer{fail: map[string]error{"http://getbootstrap.com/getting-started/@56x102": cause}}

	paths, err := New(stub).CaptureAll(context.Background(), scenario.Reference, scenarios, opts)
	if err == nil {
		t.Fatal("expected error")
	}
	if paths != nil {
		t.Errorf("expected no partial result, got %v", paths)
	}
	var ce *failure.CaptureError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CaptureError, got %v", err)
	}
	if ce.File != "getting-started-tablet_v.png" {
		t.Errorf("File = %q", ce.File)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not preserved")
	}
}

func TestCaptureAll_StreamErrorLeavesNoFile(t *testing.T) {
	dest := t.TempDir()
	capturer := CapturerFunc(func(context.Context, string, scenario.Size, scenario.CaptureContext) (io.ReadCloser, error) {
		return &brokenStream{}, nil
	})
	opts := scenario.RunOptions{Dest: dest, Viewports: []scenario.Viewport{{Name: "phone", Width: 10, Height: 10}}}

	_, err := New(capturer).CaptureAll(context.Background(), scenario.Reference,
		[]scenario.Scenario{{Label: "home", URL: "http://a"}}, opts)
	var ce *failure.CaptureError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CaptureError, got %v", err)
	}

	entries, _ := os.ReadDir(filepath.Join(dest, "reference"))
	if len(entries) != 0 {
		t.Errorf("expected empty folder, got %d entries", len(entries))
	}
}

func TestCaptureAll_URLWithoutLabel(t *testing.T) {
	dest := t.TempDir()
	opts := scenario.RunOptions{Dest: dest, Viewports: []scenario.Viewport{{Name: "phone", Width: 10, Height: 10}}}

	paths, err := New(&stubCapturer{}).CaptureAll(context.Background(), scenario.Reference,
		[]scenario.Scenario{{URL: "http://x.com/a"}}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if paths[0] != filepath.Join(dest, "reference", "x.com", "a-phone.png") {
		t.Errorf("path = %q", paths[0])
	}
}

func TestCaptureAll_PassesMergedContext(t *testing.T) {
	dest := t.TempDir()
	var got scenario.CaptureContext
	var gotSize string
	capturer := CapturerFunc(func(_ context.Context, _ string, size scenario.Size, c scenario.CaptureContext) (io.ReadCloser, error) {
		got = c
		gotSize = size.String()
		return io.NopCloser(strings.NewReader("png")), nil
	})
	opts := scenario.RunOptions{
		Dest:      dest,
		Viewports: []scenario.Viewport{{Name: "phone", Width: 320, Height: 480}},
		Hide:      []string{".cookie-banner"},
		Extra:     map[string]any{"user_agent": "regress"},
	}

	_, err := New(capturer, WithConcurrency(1)).CaptureAll(context.Background(), scenario.Reference,
		[]scenario.Scenario{{Label: "home", URL: "http://a", Extra: map[string]any{"wait_for": "main"}}}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if gotSize != "320x480" {
		t.Errorf("size = %q", gotSize)
	}
	if got.Label != "home" || got.String("user_agent") != "regress" || got.String("wait_for") != "main" {
		t.Errorf("context = %+v", got)
	}
	if fmt.Sprint(got.Hide) != "[.cookie-banner]" {
		t.Errorf("hide = %v", got.Hide)
	}
}

func TestCaptureAll_DoubleDotNames(t *testing.T) {
	dest := t.TempDir()
	scenarios := []scenario.Scenario{
		{URL: "http://x.com/docs/v1..2/"},
		{Label: "release..notes", URL: "http://x.com/notes"},
	}
	opts := scenario.RunOptions{
		Dest:      dest,
		Viewports: []scenario.Viewport{{Name: "phone", Width: 8, Height: 8}},
	}

	paths, err := New(&stubCapturer{}).CaptureAll(context.Background(), scenario.Reference, scenarios, opts)
	if err != nil {
		t.Fatalf("CaptureAll: %v", err)
	}
	want := []string{
		filepath.Join(dest, "reference", "x.com", "docs", "v1..2", "-phone.png"),
		filepath.Join(dest, "reference", "release..notes-phone.png"),
	}
	for i, p := range paths {
		if p != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, p, want[i])
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("stat %q: %v", p, err)
		}
	}
}
