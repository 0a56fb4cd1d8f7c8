package config

import (
	"strings"
	"sync"
)

var (
	ocrOnce   sync.Once
	ocrConfig *OCRConfig
)

// OCRConfig selects the OCR engine used for pages without a text layer.
type OCRConfig struct {
	Engine    string // "tesseract" or "textract"
	Languages []string

	// AWS Textract, reuses the storage credentials when unset.
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
}

func GetOCRConfig() *OCRConfig {
	ocrOnce.Do(func() {
		loadEnv()

		ocrConfig = &OCRConfig{
			Engine:       getEnv("OCR_ENGINE", "tesseract"),
			Languages:    strings.Split(getEnv("OCR_LANG", "eng"), "+"),
			AWSRegion:    getEnv("AWS_REGION", ""),
			AWSAccessKey: getEnv("AWS_ACCESS_KEY", ""),
			AWSSecretKey: getEnv("AWS_SECRET_KEY", ""),
		}
	})
	return ocrConfig
}
