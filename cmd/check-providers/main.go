// Command check-providers exercises the configured external services: it
// sends one prompt to the assistant provider and round-trips a PDF through
// report storage.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/imsantiagopoli/pilly/internal/assistant"
	"github.com/imsantiagopoli/pilly/internal/blob"
	"github.com/imsantiagopoli/pilly/internal/config"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("PILLY_CONFIG"))
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	failed := false

	logger.Info("=== Testing assistant provider ===", zap.String("provider", cfg.Assistant.Provider))
	if err := checkAssistant(ctx, cfg, logger); err != nil {
		logger.Error("Assistant provider check failed", zap.Error(err))
		failed = true
	} else {
		logger.Info("Assistant provider check passed")
	}

	logger.Info("=== Testing report storage ===")
	if err := checkReportStorage(ctx, cfg, logger); err != nil {
		logger.Error("Report storage check failed", zap.Error(err))
		failed = true
	} else {
		logger.Info("Report storage check passed")
	}

	if failed {
		os.Exit(1)
	}
}

func checkAssistant(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	provider, err := assistant.NewProvider(ctx, cfg.Assistant.Provider, assistant.Credentials{
		GeminiAPIKey:     cfg.Assistant.GeminiAPIKey,
		GeminiModel:      cfg.Assistant.GeminiModel,
		OpenAIEndpoint:   cfg.Assistant.OpenAI.Endpoint,
		OpenAIAPIKey:     cfg.Assistant.OpenAI.APIKey,
		OpenAIDeployment: cfg.Assistant.OpenAI.Deployment,
	}, logger)
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("no credentials configured for provider %q", cfg.Assistant.Provider)
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}

	reply, err := provider.Generate(ctx, assistant.SystemInstruction, "I forgot my 8am Lexapro and it is now noon. What should I do?")
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}

	logger.Info("Assistant response received",
		zap.String("provider", provider.Name()),
		zap.String("response", reply),
		zap.Int("response_length", len(reply)),
	)
	return nil
}

func checkReportStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Reports.AccountName == "" {
		return fmt.Errorf("AZURE_STORAGE_ACCOUNT_NAME and AZURE_STORAGE_ACCOUNT_KEY are not set")
	}
	storage, err := blob.NewAzureStorage(cfg.Reports.AccountName, cfg.Reports.AccountKey, cfg.Reports.Container, logger)
	if err != nil {
		return err
	}

	data := []byte("%PDF-1.4\nprovider check")
	filename := fmt.Sprintf("check-%d.pdf", time.Now().Unix())

	blobName, err := storage.UploadPDF(ctx, filename, data)
	if err != nil {
		return fmt.Errorf("PDF upload failed: %w", err)
	}
	logger.Info("PDF uploaded", zap.String("blob_name", blobName))

	downloaded, err := storage.DownloadPDF(ctx, blobName)
	if err != nil {
		return fmt.Errorf("PDF download failed: %w", err)
	}
	if !bytes.Equal(downloaded, data) {
		return fmt.Errorf("downloaded PDF doesn't match uploaded PDF")
	}

	logger.Info("PDF downloaded and verified", zap.Int("size_bytes", len(downloaded)))
	return nil
}
