package utils

import (
	"testing"
)

func TestHashString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple string",
			input:    "hello",
			expected: "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", // SHA1 of "hello"
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "da39a3ee5e6b4b0d3255bfef95601890afd80709", // SHA1 of empty string
		},
		{
			name:     "Complex string",
			input:    "The quick brown fox jumps over the lazy dog",
			expected: "2fd4e1c67a2d28fced849ee1bb76e7391b93eb12", // SHA1 of the sentence
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HashString(tt.input)

			if len(result) != 40 {
				t.Errorf("Expected hash length 40, got %d", len(result))
			}

			if result != tt.expected {
				t.Errorf("Expected hash %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestHashJSON(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	a, err := HashJSON(payload{Name: "gophers", Count: 3})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(a) != 64 {
		t.Errorf("Expected 64-char SHA256 hex digest, got %d chars", len(a))
	}

	// Identical content hashes identically
	b, _ := HashJSON(payload{Name: "gophers", Count: 3})
	if a != b {
		t.Errorf("Expected stable hash, got %s and %s", a, b)
	}

	// Any content change changes the hash
	c, _ := HashJSON(payload{Name: "gophers", Count: 4})
	if a == c {
		t.Error("Expected different content to hash differently")
	}
}

func TestHashJSON_MapOrderIndependent(t *testing.T) {
	// Maps built in different insertion orders must hash the same;
	// encoding/json sorts keys.
	m1 := map[string]int{}
	m2 := map[string]int{}
	keys := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i, k := range keys {
		m1[k] = i
	}
	for i := len(keys) - 1; i >= 0; i-- {
		m2[keys[i]] = i
	}

	h1, err := HashJSON(m1)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashJSON(m2)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("Expected identical hashes, got %s and %s", h1, h2)
	}
}

func TestHashJSON_UnmarshalableValue(t *testing.T) {
	if _, err := HashJSON(func() {}); err == nil {
		t.Error("Expected error for unencodable value")
	}
}
