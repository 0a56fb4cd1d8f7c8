package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/insurechat/bridge/config"
	"github.com/insurechat/bridge/pkg/logger"
)

// TextractEngine recognizes text with AWS Textract. Used in deployments
// without a local tesseract install.
type TextractEngine struct {
	client *textract.Client
	logger logger.Logger
}

func NewTextractEngine(ctx context.Context, cfg *config.OCRConfig, log logger.Logger) (*TextractEngine, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &TextractEngine{
		client: textract.NewFromConfig(awsCfg),
		logger: log,
	}, nil
}

// Recognize implements Engine.Recognize.
func (e *TextractEngine) Recognize(ctx context.Context, imageBytes []byte) (string, error) {
	out, err := e.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{
			Bytes: upscaleForOCR(imageBytes),
		},
	})
	if err != nil {
		return "", fmt.Errorf("textract recognition failed: %w", err)
	}

	var lines []string
	for _, block := range out.Blocks {
		if block.BlockType == types.BlockTypeLine && block.Text != nil {
			lines = append(lines, aws.ToString(block.Text))
		}
	}

	return normalizeText(strings.Join(lines, "\n")), nil
}

func (e *TextractEngine) Close() error {
	return nil
}
