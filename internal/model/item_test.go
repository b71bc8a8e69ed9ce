package model

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ptr(s string) *string { return &s }

func TestValidate(t *testing.T) {
	long := strings.Repeat("x", 256)

	tests := []struct {
		name string
		item Item
		want []string
	}{
		{"valid minimal", Item{Name: "Alice"}, nil},
		{"valid full", Item{
			Name:        "Alice",
			Description: ptr("student"),
			RollNumber:  ptr("42"),
			ClassName:   ptr("7B"),
			PhoneNumber: ptr("+386 40 123 456"),
			ImageURL:    ptr("https://example.com/a.png"),
		}, nil},
		{"missing name", Item{}, []string{"name is required"}},
		{"blank name", Item{Name: "   \t"}, []string{"name is required"}},
		{"bad url", Item{Name: "Bob", ImageURL: ptr("not-a-url")}, []string{"imageUrl must be a valid URL"}},
		{"relative url", Item{Name: "Bob", ImageURL: ptr("/images/a.png")}, []string{"imageUrl must be a valid URL"}},
		{"opaque url", Item{Name: "Bob", ImageURL: ptr("foo:bar")}, []string{"imageUrl must be a valid URL"}},
		{"javascript url", Item{Name: "Bob", ImageURL: ptr("javascript:alert(1)")}, []string{"imageUrl must be a valid URL"}},
		{"mailto url", Item{Name: "Bob", ImageURL: ptr("mailto:a@b.c")}, []string{"imageUrl must be a valid URL"}},
		{"file url", Item{Name: "Bob", ImageURL: ptr("file:///etc/passwd")}, []string{"imageUrl must be a valid URL"}},
		{"scheme without host", Item{Name: "Bob", ImageURL: ptr("http://")}, []string{"imageUrl must be a valid URL"}},
		{"port without host", Item{Name: "Bob", ImageURL: ptr("https://:8080/a.png")}, []string{"imageUrl must be a valid URL"}},
		{"uppercase scheme", Item{Name: "Bob", ImageURL: ptr("HTTP://example.com/a.png")}, nil},
		{"http with port and query", Item{Name: "Bob", ImageURL: ptr("http://localhost:8080/a.png?v=2")}, nil},
		{"name too long", Item{Name: long}, []string{"name must be at most 255 characters"}},
		{"all problems reported", Item{
			Name:       "",
			RollNumber: ptr(long),
			ImageURL:   ptr("nope"),
		}, []string{
			"name is required",
			"rollNumber must be at most 255 characters",
			"imageUrl must be a valid URL",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.item.Validate()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Validate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApply(t *testing.T) {
	item := Item{
		ID:          7,
		Name:        "Bob",
		Description: ptr("x"),
		ClassName:   ptr("3A"),
	}

	item.Apply(ItemFields{
		Name:      ptr("Bob2"),
		ClassName: ptr(""),
		ImageURL:  ptr("https://example.com/bob.png"),
	})

	want := Item{
		ID:          7,
		Name:        "Bob2",
		Description: ptr("x"),
		ImageURL:    ptr("https://example.com/bob.png"),
	}
	if diff := cmp.Diff(want, item); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyCopiesSuppliedValues(t *testing.T) {
	desc := "original"
	var item Item
	item.Apply(ItemFields{Description: &desc})

	desc = "changed"
	if *item.Description != "original" {
		t.Errorf("expected Apply to copy the value, got %q", *item.Description)
	}
}
