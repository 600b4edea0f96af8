package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/regress/regress/scenario"
)

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{}
	for _, typ := range []string{"images", "Media", "stylesheet"} {
		set[normalizeType(typ)] = true
	}

	cases := map[string]bool{
		"Image":      true,
		"Media":      true,
		"Stylesheet": true,
		"Font":       false,
		"Document":   false,
		"Script":     false,
	}
	for typ, want := range cases {
		if got := shouldBlock(set, typ); got != want {
			t.Errorf("shouldBlock(%s) = %v, want %v", typ, got, want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	m := NewManager(Config{})
	if m.cfg.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", m.cfg.Timeout)
	}
	if m.cfg.Logger == nil {
		t.Error("logger not defaulted")
	}
	if m.Browser() != nil {
		t.Error("browser before Start")
	}
}

func TestCapture_NotStarted(t *testing.T) {
	c := NewCapturer(NewManager(Config{}))
	_, err := c.Capture(context.Background(), "http://example.test", scenario.Size{Width: 10, Height: 10}, scenario.CaptureContext{})
	if err == nil {
		t.Fatal("expected error without browser")
	}
}

func TestStart_AfterClose(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("expected error on closed manager")
	}
}

func TestSleep(t *testing.T) {
	if err := sleep(context.Background(), 0); err != nil {
		t.Errorf("zero delay: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled sleep = %v", err)
	}
}
