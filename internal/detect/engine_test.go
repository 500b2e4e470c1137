package detect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/veil-sh/veil/internal/pii"
	"github.com/veil-sh/veil/internal/providers"
)

func TestDetectAllPatternOnly(t *testing.T) {
	e := New(Config{})
	text := "SSN 123-45-6789 and email jane@example.com on file."

	got, err := e.DetectAll(context.Background(), text, Options{})
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entities, want 2: %+v", len(got), got)
	}
	if got[0].Type != pii.TypeSSN || got[1].Type != pii.TypeEmail {
		t.Errorf("types = %s, %s", got[0].Type, got[1].Type)
	}
}

func TestDetectAllInputErrors(t *testing.T) {
	e := New(Config{MaxTextBytes: 32})

	tests := []struct {
		name string
		text string
		opts Options
	}{
		{"empty text", "", Options{}},
		{"whitespace only", "  \n\t ", Options{}},
		{"oversized text", strings.Repeat("x", 33), Options{}},
		{"unknown type", "some text", Options{Types: []pii.Type{"PASSPORT"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.DetectAll(context.Background(), tt.text, tt.opts)
			if !IsInputError(err) {
				t.Errorf("err = %v, want InputError", err)
			}
		})
	}
}

func TestDetectAllProviderFailureDegrades(t *testing.T) {
	fake := &providers.Fake{Err: errors.New("service unavailable")}
	e := New(Config{Completer: fake})
	text := "SSN 123-45-6789 on file."

	got, err := e.DetectAll(context.Background(), text, Options{})
	if err != nil {
		t.Fatalf("DetectAll: %v (enhancement failure must not abort)", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entities, want the pattern hit to survive", len(got))
	}
	if got[0].Type != pii.TypeSSN || got[0].Method != pii.MethodPattern {
		t.Errorf("got %+v", got[0])
	}
}

func TestDetectAllMalformedModelOutputDegrades(t *testing.T) {
	fake := providers.NewFake("sure! here are the findings you asked for")
	e := New(Config{Completer: fake})

	got, err := e.DetectAll(context.Background(), "SSN 123-45-6789.", Options{})
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entities, want 1", len(got))
	}
}

func TestDetectAllMergesGenerativeFindings(t *testing.T) {
	text := "ssn is five five five one two one two three four, repeat five five five one two one two three four"
	fake := providers.NewFake(
		`[{"type": "SSN", "value": "five five five one two one two three four"}]`,
		`[]`,
	)
	e := New(Config{Completer: fake})

	got, err := e.DetectAll(context.Background(), text, Options{Types: []pii.Type{pii.TypeSSN}})
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	// One contextual finding plus one retrospective repeat.
	if len(got) != 2 {
		t.Fatalf("got %d entities, want 2: %+v", len(got), got)
	}
	methods := map[pii.Method]int{}
	for _, ent := range got {
		methods[ent.Method]++
	}
	if methods[pii.MethodContextual] != 1 || methods[pii.MethodRetrospective] != 1 {
		t.Errorf("methods = %v", methods)
	}
}

func TestDetectAllDisjointOutput(t *testing.T) {
	// A 9-digit run is claimed by both the ssn and account rules; the
	// output must stay disjoint and ordered.
	text := "ids 123456789 and 123-45-6789 and account number: 55512345678"
	e := New(Config{})

	got, err := e.DetectAll(context.Background(), text, Options{})
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Span.Start < got[i-1].Span.End {
			t.Errorf("overlapping output: %+v then %+v", got[i-1], got[i])
		}
	}
}

func TestDetectAllStampsPageNumber(t *testing.T) {
	e := New(Config{})
	got, err := e.DetectAll(context.Background(), "SSN 123-45-6789", Options{PageNumber: 7})
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}
	if len(got) != 1 || got[0].PageNumber != 7 {
		t.Errorf("got %+v, want PageNumber 7", got)
	}
}

func TestApplyPlan(t *testing.T) {
	e := New(Config{})
	text := "SSN 123-45-6789 and card 4111111111111111."

	entities, err := e.DetectAll(context.Background(), text, Options{})
	if err != nil {
		t.Fatalf("DetectAll: %v", err)
	}

	got := ApplyPlan(text, entities)
	want := "SSN ***-**-6789 and card ****-****-****-1111."
	if got != want {
		t.Errorf("ApplyPlan = %q, want %q", got, want)
	}
	if strings.Contains(got, "123-45-6789") || strings.Contains(got, "4111111111111111") {
		t.Error("raw value leaked into masked text")
	}
}

func TestApplyPlanSkipsNonRedacted(t *testing.T) {
	text := "hello jane@example.com"
	entities := []pii.Entity{{
		Type:        pii.TypeEmail,
		Value:       "jane@example.com",
		MaskedValue: "j***@example.com",
		Span:        pii.Span{Start: 6, End: 22},
		Confidence:  0.95,
	}}

	if got := ApplyPlan(text, entities); got != text {
		t.Errorf("ApplyPlan = %q, want unchanged text", got)
	}
}
