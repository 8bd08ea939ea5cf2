package helper

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// PrepareModel downloads a sentence transformer model into ./models if it is
// not present yet and returns the local model path.
func PrepareModel(modelName string) (string, error) {
	modelsDir := "./models"
	modelPath := filepath.Join(modelsDir, strings.ReplaceAll(modelName, "/", "_"))

	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	}

	err := os.MkdirAll(modelsDir, 0o755)
	if err != nil {
		return "", NewError("create models directory", err)
	}

	options := hugot.NewDownloadOptions()
	downloadedPath, err := hugot.DownloadModel(modelName, modelsDir, options)
	if err != nil {
		return "", NewError("download model", err)
	}

	return downloadedPath, nil
}
