package logger

import (
	"fmt"
	"strings"

	"github.com/procost/enquiry-api/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component names given to Named
const (
	ComponentHTTP       = "http"
	ComponentIngestion  = "ingestion"
	ComponentEnquiries  = "enquiries"
	ComponentQuotes     = "quotes"
	ComponentPricing    = "pricing"
	ComponentCatalog    = "catalog"
	ComponentExtraction = "extraction"
	ComponentJobs       = "jobs"
)

// NewLogger builds the process logger. Production and the json format get
// the JSON encoder with ISO8601 timestamps; anything else logs to a colored
// console.
func NewLogger(cfg *config.LoggingConfig, appCfg *config.AppConfig) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Format == "json" || appCfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	zapCfg.InitialFields = map[string]interface{}{
		"app":         appCfg.Name,
		"environment": appCfg.Environment,
	}

	log, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// ParseLevel maps a configured level name to a zap level. Unknown or empty
// names mean info.
func ParseLevel(name string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Named scopes a logger to one component, e.g. "enquiries" or "quotes"
func Named(log *zap.Logger, component string) *zap.Logger {
	return log.Named(component)
}

// WithRequest adds request context to logger
func WithRequest(log *zap.Logger, method, path, requestID string) *zap.Logger {
	return log.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)
}

// WithThread adds inbound email threading context to logger
func WithThread(log *zap.Logger, threadKey, messageKey string) *zap.Logger {
	return log.With(
		zap.String("thread_key", threadKey),
		zap.String("message_key", messageKey),
	)
}

// WithEnquiry tags entries with the enquiry's external number
func WithEnquiry(log *zap.Logger, enquiryID string) *zap.Logger {
	return log.With(zap.String("enquiry_id", enquiryID))
}
