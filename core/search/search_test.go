package search

import (
	"fmt"
	"math/rand"
	"testing"
)

func refs(items []Result) []string {
	out := make([]string, len(items))
	for i, r := range items {
		out[i] = r.Ref
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestApplyOrdering(t *testing.T) {
	results := []Result{{Ref: "2:10"}, {Ref: "10:1"}, {Ref: "2:9"}, {Ref: "1:7"}}

	asc := Apply(results, View{})
	if want := []string{"1:7", "2:9", "2:10", "10:1"}; !equalStrings(refs(asc.Items), want) {
		t.Errorf("asc = %v, want %v", refs(asc.Items), want)
	}

	desc := Apply(results, View{Order: Desc})
	if want := []string{"10:1", "2:10", "2:9", "1:7"}; !equalStrings(refs(desc.Items), want) {
		t.Errorf("desc = %v, want %v", refs(desc.Items), want)
	}

	if results[0].Ref != "2:10" {
		t.Error("Apply modified its input")
	}
}

func TestApplyChapterFilter(t *testing.T) {
	results := []Result{{Ref: "2:10"}, {Ref: "10:1"}, {Ref: "2:9"}, {Ref: "1:7"}}
	page := Apply(results, View{Chapter: 2})
	if want := []string{"2:9", "2:10"}; !equalStrings(refs(page.Items), want) {
		t.Errorf("chapter 2 = %v, want %v", refs(page.Items), want)
	}
	if page.Total != 2 || page.Pages != 1 {
		t.Errorf("Total/Pages = %d/%d", page.Total, page.Pages)
	}
}

func TestApplyEmpty(t *testing.T) {
	page := Apply(nil, View{Page: 3})
	if page.Pages != 1 || page.Page != 1 || page.Total != 0 || len(page.Items) != 0 {
		t.Errorf("empty page = %+v", page)
	}
}

func TestApplyClampsPage(t *testing.T) {
	var results []Result
	for i := 1; i <= 30; i++ {
		results = append(results, Result{Ref: fmt.Sprintf("3:%d", i)})
	}
	tests := []struct {
		page, wantPage, wantLen int
	}{
		{0, 1, 25},
		{1, 1, 25},
		{2, 2, 5},
		{99, 2, 5},
		{-4, 1, 25},
	}
	for _, tt := range tests {
		p := Apply(results, View{Page: tt.page})
		if p.Page != tt.wantPage || len(p.Items) != tt.wantLen || p.Pages != 2 {
			t.Errorf("page %d: got page=%d len=%d pages=%d", tt.page, p.Page, len(p.Items), p.Pages)
		}
	}
}

// Concatenating every ascending page reproduces the sorted list exactly once.
func TestApplyPagesCoverSortedList(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{0, 1, 24, 25, 26, 50, 51, 137} {
		results := make([]Result, n)
		for i := range results {
			results[i] = Result{Ref: fmt.Sprintf("%d:%d", 1+i%9, 1+i/9)}
		}
		rng.Shuffle(len(results), func(i, j int) { results[i], results[j] = results[j], results[i] })

		first := Apply(results, View{})
		var all []string
		for p := 1; p <= first.Pages; p++ {
			all = append(all, refs(Apply(results, View{Page: p}).Items)...)
		}

		whole := Apply(results, View{PerPage: n + 1})
		if !equalStrings(all, refs(whole.Items)) {
			t.Errorf("n=%d: paged concatenation differs from sorted list", n)
		}
		seen := make(map[string]bool)
		for _, r := range all {
			if seen[r] {
				t.Errorf("n=%d: %s appears twice", n, r)
			}
			seen[r] = true
		}
	}
}

func TestAvailableChapters(t *testing.T) {
	results := []Result{{Ref: "112:1"}, {Ref: "2:10"}, {Ref: "2:3"}, {Ref: "1:1"}, {Ref: "bad"}}
	got := AvailableChapters(results)
	want := []int{1, 2, 112}
	if len(got) != len(want) {
		t.Fatalf("AvailableChapters = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AvailableChapters = %v, want %v", got, want)
		}
	}
}

func TestParseOrder(t *testing.T) {
	if ParseOrder("DESC") != Desc || ParseOrder("asc") != Asc || ParseOrder("") != Asc {
		t.Error("ParseOrder mismatch")
	}
	if Desc.String() != "desc" {
		t.Errorf("Desc.String() = %q", Desc.String())
	}
}
