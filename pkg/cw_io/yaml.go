/* pkg/cw_io/yaml.go */

package cw_io

import (
	"context"
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// WriteYAML marshals in and writes it owner-only via WriteFileAtomic.
func WriteYAML(ctx context.Context, filePath string, in interface{}) error {
	logger := otelzap.Ctx(ctx)
	logger.Debug("Writing YAML file", zap.String("path", filePath))

	data, err := yaml.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := WriteFileAtomic(filePath, data, 0600); err != nil {
		logger.Error("Failed to write YAML file", zap.String("path", filePath), zap.Error(err))
		return err
	}

	logger.Debug("YAML file written", zap.String("path", filePath), zap.Int("size", len(data)))
	return nil
}
