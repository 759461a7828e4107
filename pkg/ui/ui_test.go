package ui

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()

	original, originalNoColor := Output, color.NoColor
	t.Cleanup(func() {
		Output = original
		color.NoColor = originalNoColor
	})

	var buf bytes.Buffer
	Output = &buf
	color.NoColor = true
	return &buf
}

func TestMessages(t *testing.T) {
	buf := capture(t)

	Successf("stored %d", 3)
	Warningf("skipped %d", 2)
	Errorf("failed %s", "UK/Tmax")
	Infof("mode %s", "annual")

	assert.Equal(t, "✓ stored 3\n⚠ skipped 2\n✗ failed UK/Tmax\nℹ mode annual\n", buf.String())
}

func TestHeaderAndFields(t *testing.T) {
	buf := capture(t)

	Header("Ingestion")
	Field("Created", 12)

	assert.Equal(t, "Ingestion\n=========\n  Created:           12\n", buf.String())
}

func TestList_Truncates(t *testing.T) {
	buf := capture(t)

	items := make([]string, 5)
	for i := range items {
		items[i] = fmt.Sprintf("error %d", i)
	}
	List(items, 3)

	assert.Equal(t, "  - error 0\n  - error 1\n  - error 2\n  ... and 2 more\n", buf.String())
}

func TestInitColors(t *testing.T) {
	capture(t)
	color.NoColor = false

	InitColors(false)
	assert.False(t, color.NoColor)

	InitColors(true)
	assert.True(t, color.NoColor)
}
