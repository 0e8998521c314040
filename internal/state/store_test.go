package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileEntry_DisplayName(t *testing.T) {
	tests := []struct {
		name  string
		entry FileEntry
		want  string
	}{
		{"no prefix", FileEntry{Name: "doc.txt"}, "doc.txt"},
		{"prefix stripped", FileEntry{Name: "user_3/doc.txt", ScopePrefix: "user_3"}, "doc.txt"},
		{"prefix absent from name", FileEntry{Name: "doc.txt", ScopePrefix: "user_3"}, "doc.txt"},
		{"nested path keeps inner slash", FileEntry{Name: "user_3/a/b.txt", ScopePrefix: "user_3"}, "a/b.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.DisplayName())
		})
	}
}

func TestFileEntry_DisplayNameNormalizesUnicode(t *testing.T) {
	// 'e' followed by U+0301 combining acute (NFD input) must display as
	// the precomposed NFC form.
	entry := FileEntry{Name: "re\u0301sume\u0301.pdf"}
	assert.Equal(t, "r\u00e9sum\u00e9.pdf", entry.DisplayName())
}

func TestFileEntry_WireName(t *testing.T) {
	tests := []struct {
		name  string
		entry FileEntry
		want  string
	}{
		{"no prefix", FileEntry{Name: "doc.txt"}, "doc.txt"},
		{"prefix already present", FileEntry{Name: "user_3/doc.txt", ScopePrefix: "user_3"}, "user_3/doc.txt"},
		{"prefix applied", FileEntry{Name: "doc.txt", ScopePrefix: "user_3"}, "user_3/doc.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.WireName())
		})
	}
}

func TestStore_FilesCopyIsolation(t *testing.T) {
	s := NewStore()
	s.SetFiles([]FileEntry{{Name: "a.txt"}})

	got := s.Files()
	got[0].Name = "mutated"

	assert.Equal(t, "a.txt", s.Files()[0].Name)
}

func TestStore_ScopedErrors(t *testing.T) {
	s := NewStore()

	// A new attempt replaces the previous error in the same scope.
	s.SetError(ScopeUpload, "first")
	s.SetError(ScopeUpload, "second")

	msg, ok := s.Error(ScopeUpload)
	assert.True(t, ok)
	assert.Equal(t, "second", msg)

	// Errors in other scopes are untouched.
	s.SetError(ScopeDelete, "delete failed")
	s.ClearError(ScopeUpload)

	_, ok = s.Error(ScopeUpload)
	assert.False(t, ok)

	msg, ok = s.Error(ScopeDelete)
	assert.True(t, ok)
	assert.Equal(t, "delete failed", msg)
}

func TestStore_PublicLinks(t *testing.T) {
	s := NewStore()

	s.SetPublicLink("a.txt", "http://x/public/1")
	s.SetPublicLink("a.txt", "http://x/public/2") // replaces

	pl, ok := s.PublicLink("a.txt")
	assert.True(t, ok)
	assert.Equal(t, "http://x/public/2", pl.URL)

	s.RemovePublicLink("a.txt")

	_, ok = s.PublicLink("a.txt")
	assert.False(t, ok)
}

func TestStore_BeginFetchCycleClearsLinks(t *testing.T) {
	s := NewStore()

	s.SetPublicLink("a.txt", "http://x/public/1")
	s.SetError(ScopePublicLink, "boom")
	s.SetError(ScopeUpload, "upload failed")

	s.BeginFetchCycle()

	assert.Empty(t, s.PublicLinks())

	_, ok := s.Error(ScopePublicLink)
	assert.False(t, ok)

	// Other scopes survive a fetch cycle.
	msg, ok := s.Error(ScopeUpload)
	assert.True(t, ok)
	assert.Equal(t, "upload failed", msg)
}

func TestStore_Reset(t *testing.T) {
	s := NewStore()

	s.SetFiles([]FileEntry{{Name: "a.txt"}})
	s.SetStats(Stats{TotalFiles: 1, TotalSizeBytes: 42})
	s.SetPublicLink("a.txt", "http://x/public/1")
	s.SetError(ScopeAuth, "boom")

	s.Reset()

	assert.Empty(t, s.Files())
	assert.Equal(t, Stats{}, s.Stats())
	assert.Empty(t, s.PublicLinks())

	_, ok := s.Error(ScopeAuth)
	assert.False(t, ok)
}
