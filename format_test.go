package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/filecrate/filecrate-go/internal/state"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.0 TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()

	sameYear := time.Date(now.Year(), time.March, 5, 14, 30, 0, 0, time.Local)
	assert.Equal(t, "Mar  5 14:30", formatTime(sameYear))

	otherYear := time.Date(2019, time.March, 5, 14, 30, 0, 0, time.Local)
	assert.Equal(t, "Mar  5  2019", formatTime(otherYear))
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer

	renderStats(&buf, state.Stats{TotalFiles: 3, TotalSizeBytes: 1536})

	want := "FILES  SIZE  \n" +
		"3      1.5 KB\n"
	assert.Equal(t, want, buf.String())
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"NAME", "SIZE"}, [][]string{
		{"a.txt", "1.0 KB"},
		{"longer-name.txt", "12 B"},
	})

	want := "NAME             SIZE  \n" +
		"a.txt            1.0 KB\n" +
		"longer-name.txt  12 B  \n"
	assert.Equal(t, want, buf.String())
}
