package ui

import (
	"bytes"
	"testing"
)

func TestWarn(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	defer SetWriter(nil)

	Warn("something happened")

	if got := buf.String(); got != "Warning: something happened\n" {
		t.Errorf("Warn output = %q, want %q", got, "Warning: something happened\n")
	}
}

func TestWarnf(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	defer SetWriter(nil)

	Warnf("skipping %q: %s", "branch protection", "API call failed")

	want := "Warning: skipping \"branch protection\": API call failed\n"
	if got := buf.String(); got != want {
		t.Errorf("Warnf output = %q, want %q", got, want)
	}
}

func TestErrorf(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	defer SetWriter(nil)

	Errorf("bad key %q", "id_ed25519")

	want := "Error: bad key \"id_ed25519\"\n"
	if got := buf.String(); got != want {
		t.Errorf("Errorf output = %q, want %q", got, want)
	}
}

func TestTagsWithoutColor(t *testing.T) {
	prev := ColorEnabled()
	SetColorEnabled(false)
	defer SetColorEnabled(prev)

	if got := OKTag(); got != "✓" {
		t.Errorf("OKTag = %q, want plain check mark", got)
	}
	if got := FailTag(); got != "✗" {
		t.Errorf("FailTag = %q, want plain cross", got)
	}
	if got := WarnTag(); got != "⚠" {
		t.Errorf("WarnTag = %q, want plain warning sign", got)
	}
}

func TestBoldRespectsColorToggle(t *testing.T) {
	prev := ColorEnabled()
	defer SetColorEnabled(prev)

	SetColorEnabled(true)
	if got := Bold("x"); got != "\033[1mx\033[0m" {
		t.Errorf("Bold with color = %q", got)
	}
	SetColorEnabled(false)
	if got := Bold("x"); got != "x" {
		t.Errorf("Bold without color = %q", got)
	}
}
