package fingerprint

import "testing"

func TestTokenizeSplitsOnPunctuation(t *testing.T) {
	tokens := Tokenize("الرئيس, يعلن 2024 عن-خطة!")
	want := []string{"الرئيس", "يعلن", "2024", "عن", "خطة"}
	if len(tokens) != len(want) {
		t.Fatalf("got %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestTokenizeDropsSingleCharTokens(t *testing.T) {
	tokens := Tokenize("a b cd")
	if len(tokens) != 1 || tokens[0] != "cd" {
		t.Errorf("got %v, want [cd]", tokens)
	}
}

func TestShinglesDedupesIdenticalBigrams(t *testing.T) {
	tokens := make([]string, 200)
	for i := range tokens {
		tokens[i] = "tok"
	}
	sh := Shingles(tokens)
	if len(sh) != 1 {
		t.Errorf("expected dedup to collapse identical bigrams, got %d", len(sh))
	}
}

func TestSimHashIdenticalTextsMatch(t *testing.T) {
	a := SimHash(Tokenize("الرئيس يعلن عن خطة اقتصادية جديدة"))
	b := SimHash(Tokenize("الرئيس يعلن عن خطة اقتصادية جديدة"))
	if a != b {
		t.Errorf("expected identical simhash for identical text")
	}
}

func TestSimilarityNearDuplicateScoresHigh(t *testing.T) {
	fpA := Compute("الرئيس يعلن عن خطة اقتصادية جديدة لدعم الاستثمار")
	fpB := Compute("الرئيس يعلن خطة اقتصادية جديدة لدعم الاستثمار")
	_, _, score := Similarity(fpA, fpB)
	if score < 0.6 {
		t.Errorf("expected high similarity score for near-duplicate text, got %v", score)
	}
}

func TestSimilarityDistinctTextsScoreLow(t *testing.T) {
	fpA := Compute("مباراة كرة القدم انتهت بالتعادل بين الفريقين")
	fpB := Compute("ارتفاع أسعار النفط العالمية بشكل ملحوظ هذا الأسبوع")
	_, _, score := Similarity(fpA, fpB)
	if score > 0.55 {
		t.Errorf("expected low similarity score for distinct text, got %v", score)
	}
}

func TestHammingDistanceBounds(t *testing.T) {
	if d := hammingDistance(0, 0); d != 0 {
		t.Errorf("expected 0, got %d", d)
	}
	if d := hammingDistance(-1, 0); d != 64 {
		t.Errorf("expected 64, got %d", d)
	}
}
