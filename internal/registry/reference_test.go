package registry

import (
	"errors"
	"strings"
	"testing"
)

func TestParseImage(t *testing.T) {
	tests := []struct {
		in   string
		repo string
		tag  string
	}{
		{"alpine:3.20", "alpine", "3.20"},
		{"ubuntu:latest", "ubuntu", "latest"},
		{"busybox:1.36.1-musl", "busybox", "1.36.1-musl"},
		{"my-app_2:v1", "my-app_2", "v1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			img, err := ParseImage(tt.in)
			if err != nil {
				t.Fatalf("ParseImage(%q): %v", tt.in, err)
			}
			if img.Repository != tt.repo {
				t.Errorf("Repository = %q, want %q", img.Repository, tt.repo)
			}
			if img.Tag != tt.tag {
				t.Errorf("Tag = %q, want %q", img.Tag, tt.tag)
			}
			if img.String() != tt.in {
				t.Errorf("String() = %q, want %q", img.String(), tt.in)
			}
		})
	}
}

func TestParseImageInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no colon", "alpine"},
		{"empty repository", ":3.20"},
		{"empty tag", "alpine:"},
		{"uppercase repository", "Alpine:3.20"},
		{"invalid tag characters", "alpine:bad tag"},
		{"registry host with port", "localhost:5000/alpine:3"},
		{"tag too long", "alpine:" + strings.Repeat("a", 129)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImage(tt.in)
			if err == nil {
				t.Fatalf("ParseImage(%q) succeeded, want error", tt.in)
			}
			if !errors.Is(err, ErrInvalidReference) {
				t.Fatalf("err = %v, want ErrInvalidReference", err)
			}
		})
	}
}

func TestImagePathAndScope(t *testing.T) {
	img := Image{Repository: "alpine", Tag: "3.20"}

	if got, want := img.Path(), "library/alpine"; got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
	if got, want := img.Scope(), "repository:library/alpine:pull"; got != want {
		t.Errorf("Scope() = %q, want %q", got, want)
	}
}

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"scratch", true},
		{"-", true},
		{"", false},
		{"scratch:latest", false},
		{"alpine:3.20", false},
	}

	for _, tt := range tests {
		if got := IsPlaceholder(tt.in); got != tt.want {
			t.Errorf("IsPlaceholder(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
