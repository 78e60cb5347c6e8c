// Package metadata - Class name metadata packed into model files.
package metadata

import (
	"archive/zip"
	"io"
	"os"
	"path"

	"github.com/nvr-ai/go-detect/models"
	"github.com/pkg/errors"
)

// metadataFiles are the archive members that may carry class names, in preference order.
var metadataFiles = []string{"temp_meta.txt", "metadata.yaml", "metadata.txt"}

// ReadAppendedNames extracts class names from the zip archive that exporters append
// to .tflite files. It returns nil when the file has no archive or no names.
func ReadAppendedNames(modelPath string) []string {
	raw, err := readMetadata(modelPath)
	if err != nil {
		return nil
	}
	return models.ParseNames(raw)
}

func readMetadata(modelPath string) (string, error) {
	f, err := os.Open(modelPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	archive, err := zip.NewReader(f, info.Size())
	if err != nil {
		return "", errors.Wrap(err, "no metadata archive")
	}

	byName := make(map[string]*zip.File, len(archive.File))
	for _, file := range archive.File {
		byName[path.Base(file.Name)] = file
	}

	for _, name := range metadataFiles {
		file, ok := byName[name]
		if !ok {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	return "", errors.New("no metadata file in archive")
}
