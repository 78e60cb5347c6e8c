package metadata

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeModel writes fake flatbuffer bytes followed by an optional zip archive.
func writeModel(t *testing.T, files map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("TFL3 not a real flatbuffer payload")

	if files != nil {
		zw := zip.NewWriter(&buf)
		zw.SetOffset(int64(buf.Len()))
		for name, content := range files {
			w, err := zw.Create(name)
			require.NoError(t, err)
			_, err = w.Write([]byte(content))
			require.NoError(t, err)
		}
		require.NoError(t, zw.Close())
	}

	p := filepath.Join(t.TempDir(), "model.tflite")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o600))
	return p
}

// TestReadAppendedNames reads the names packed after the model payload.
func TestReadAppendedNames(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  []string
	}{
		{
			name:  "ultralytics temp_meta",
			files: map[string]string{"temp_meta.txt": "{'task': 'detect', 'names': {0: 'person', 1: 'car'}}"},
			want:  []string{"person", "car"},
		},
		{
			name:  "yaml metadata",
			files: map[string]string{"metadata.yaml": "names:\n  0: cat\n  1: dog\n"},
			want:  []string{"cat", "dog"},
		},
		{
			name:  "preferred member wins",
			files: map[string]string{"temp_meta.txt": "{0: 'a'}", "metadata.yaml": "names: [b]"},
			want:  []string{"a"},
		},
		{
			name:  "unrelated archive",
			files: map[string]string{"labels.bin": "xx"},
		},
		{
			name: "no archive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadAppendedNames(writeModel(t, tt.files)))
		})
	}
}

// TestReadAppendedNamesMissingFile returns nil rather than failing.
func TestReadAppendedNamesMissingFile(t *testing.T) {
	assert.Nil(t, ReadAppendedNames(filepath.Join(t.TempDir(), "missing.tflite")))
}
