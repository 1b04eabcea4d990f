package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/platewatch/internal/units"
)

// DefaultConfigPath is the path to the canonical service defaults file.
// This is the single source of truth for all default service values.
const DefaultConfigPath = "config/service.defaults.json"

// ServiceConfig represents the root configuration for the plate service.
// All fields are optional pointers so a partial JSON file overrides only
// what it names; the Get* accessors supply defaults for the rest. The
// loaded config is treated as immutable after startup.
type ServiceConfig struct {
	// Detection params
	ModelPath           *string  `json:"model_path,omitempty"`
	DetectionConfidence *float64 `json:"detection_confidence,omitempty"`
	NMSThreshold        *float64 `json:"nms_threshold,omitempty"`
	MinRegionFraction   *float64 `json:"min_region_fraction,omitempty"`
	InferenceTimeout    *string  `json:"inference_timeout,omitempty"` // duration string like "10s"

	// OCR params
	OCRLanguage      *string  `json:"ocr_language,omitempty"`
	OCRWhitelist     *string  `json:"ocr_whitelist,omitempty"`
	MinOCRConfidence *float64 `json:"min_ocr_confidence,omitempty"`

	// Artifact storage params
	UploadDir      *string `json:"upload_dir,omitempty"`
	ResultsDir     *string `json:"results_dir,omitempty"`
	CropsDir       *string `json:"crops_dir,omitempty"`
	MaxUploadBytes *int64  `json:"max_upload_bytes,omitempty"`

	// Display params
	SpeedUnits *string `json:"speed_units,omitempty"`

	// Retention params
	RetentionInterval *string `json:"retention_interval,omitempty"` // duration string like "1h"
	DetectionLogTTL   *string `json:"detection_log_ttl,omitempty"`
	ArtifactTTL       *string `json:"artifact_ttl,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt64(v int64) *int64       { return &v }

// DefaultServiceConfig returns a ServiceConfig with every field set to its
// default value. The canonical defaults file mirrors this.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		ModelPath:           ptrString("models/plate_detector.onnx"),
		DetectionConfidence: ptrFloat64(0.65),
		NMSThreshold:        ptrFloat64(0.5),
		MinRegionFraction:   ptrFloat64(0.05),
		InferenceTimeout:    ptrString("10s"),
		OCRLanguage:         ptrString("eng"),
		OCRWhitelist:        ptrString("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"),
		MinOCRConfidence:    ptrFloat64(0.35),
		UploadDir:           ptrString("uploads"),
		ResultsDir:          ptrString("results"),
		CropsDir:            ptrString("cropped_plates"),
		MaxUploadBytes:      ptrInt64(50 * 1024 * 1024),
		SpeedUnits:          ptrString(units.MPH),
		RetentionInterval:   ptrString("1h"),
		DetectionLogTTL:     ptrString("720h"),
		ArtifactTTL:         ptrString("168h"),
	}
}

// LoadServiceConfig loads a ServiceConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := &ServiceConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical service defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *ServiceConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/anpr/enhance/ and siblings
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadServiceConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *ServiceConfig) Validate() error {
	if c.DetectionConfidence != nil {
		if *c.DetectionConfidence < 0 || *c.DetectionConfidence > 1 {
			return fmt.Errorf("detection_confidence must be between 0 and 1, got %f", *c.DetectionConfidence)
		}
	}

	if c.NMSThreshold != nil {
		if *c.NMSThreshold < 0 || *c.NMSThreshold > 1 {
			return fmt.Errorf("nms_threshold must be between 0 and 1, got %f", *c.NMSThreshold)
		}
	}

	if c.MinRegionFraction != nil {
		if *c.MinRegionFraction < 0 || *c.MinRegionFraction > 1 {
			return fmt.Errorf("min_region_fraction must be between 0 and 1, got %f", *c.MinRegionFraction)
		}
	}

	if c.MinOCRConfidence != nil {
		if *c.MinOCRConfidence < 0 || *c.MinOCRConfidence > 1 {
			return fmt.Errorf("min_ocr_confidence must be between 0 and 1, got %f", *c.MinOCRConfidence)
		}
	}

	// Validate duration strings can be parsed if set
	for name, v := range map[string]*string{
		"inference_timeout":  c.InferenceTimeout,
		"retention_interval": c.RetentionInterval,
		"detection_log_ttl":  c.DetectionLogTTL,
		"artifact_ttl":       c.ArtifactTTL,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	if c.MaxUploadBytes != nil {
		if *c.MaxUploadBytes <= 0 {
			return fmt.Errorf("max_upload_bytes must be positive, got %d", *c.MaxUploadBytes)
		}
	}

	if c.SpeedUnits != nil && *c.SpeedUnits != "" {
		if !units.IsValid(*c.SpeedUnits) {
			return fmt.Errorf("invalid speed_units '%s': valid values are %s", *c.SpeedUnits, units.GetValidUnitsString())
		}
	}

	return nil
}

// GetModelPath returns the model_path value or the default.
func (c *ServiceConfig) GetModelPath() string {
	if c.ModelPath == nil || *c.ModelPath == "" {
		return "models/plate_detector.onnx" // default
	}
	return *c.ModelPath
}

// GetDetectionConfidence returns the detection_confidence value or the default.
func (c *ServiceConfig) GetDetectionConfidence() float64 {
	if c.DetectionConfidence == nil {
		return 0.65 // default
	}
	return *c.DetectionConfidence
}

// GetNMSThreshold returns the nms_threshold value or the default.
func (c *ServiceConfig) GetNMSThreshold() float64 {
	if c.NMSThreshold == nil {
		return 0.5 // default
	}
	return *c.NMSThreshold
}

// GetMinRegionFraction returns the min_region_fraction value or the default.
func (c *ServiceConfig) GetMinRegionFraction() float64 {
	if c.MinRegionFraction == nil {
		return 0.05 // default
	}
	return *c.MinRegionFraction
}

// GetInferenceTimeout parses and returns the InferenceTimeout as a time.Duration.
func (c *ServiceConfig) GetInferenceTimeout() time.Duration {
	if c.InferenceTimeout == nil || *c.InferenceTimeout == "" {
		return 10 * time.Second // default
	}
	d, err := time.ParseDuration(*c.InferenceTimeout)
	if err != nil {
		return 10 * time.Second // default on parse error
	}
	return d
}

// GetOCRLanguage returns the ocr_language value or the default.
func (c *ServiceConfig) GetOCRLanguage() string {
	if c.OCRLanguage == nil || *c.OCRLanguage == "" {
		return "eng" // default
	}
	return *c.OCRLanguage
}

// GetOCRWhitelist returns the ocr_whitelist value or the default.
func (c *ServiceConfig) GetOCRWhitelist() string {
	if c.OCRWhitelist == nil {
		return "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" // default
	}
	return *c.OCRWhitelist
}

// GetMinOCRConfidence returns the min_ocr_confidence value or the default.
func (c *ServiceConfig) GetMinOCRConfidence() float64 {
	if c.MinOCRConfidence == nil {
		return 0.35 // default
	}
	return *c.MinOCRConfidence
}

// GetUploadDir returns the upload_dir value or the default.
func (c *ServiceConfig) GetUploadDir() string {
	if c.UploadDir == nil || *c.UploadDir == "" {
		return "uploads" // default
	}
	return *c.UploadDir
}

// GetResultsDir returns the results_dir value or the default.
func (c *ServiceConfig) GetResultsDir() string {
	if c.ResultsDir == nil || *c.ResultsDir == "" {
		return "results" // default
	}
	return *c.ResultsDir
}

// GetCropsDir returns the crops_dir value or the default.
func (c *ServiceConfig) GetCropsDir() string {
	if c.CropsDir == nil || *c.CropsDir == "" {
		return "cropped_plates" // default
	}
	return *c.CropsDir
}

// GetMaxUploadBytes returns the max_upload_bytes value or the default.
func (c *ServiceConfig) GetMaxUploadBytes() int64 {
	if c.MaxUploadBytes == nil {
		return 50 * 1024 * 1024 // default: 50MB
	}
	return *c.MaxUploadBytes
}

// GetSpeedUnits returns the speed_units value or the default.
func (c *ServiceConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil || *c.SpeedUnits == "" {
		return units.MPH // default
	}
	return *c.SpeedUnits
}

// GetRetentionInterval parses and returns the RetentionInterval as a time.Duration.
func (c *ServiceConfig) GetRetentionInterval() time.Duration {
	if c.RetentionInterval == nil || *c.RetentionInterval == "" {
		return time.Hour // default
	}
	d, err := time.ParseDuration(*c.RetentionInterval)
	if err != nil {
		return time.Hour // default on parse error
	}
	return d
}

// GetDetectionLogTTL parses and returns the DetectionLogTTL as a time.Duration.
func (c *ServiceConfig) GetDetectionLogTTL() time.Duration {
	if c.DetectionLogTTL == nil || *c.DetectionLogTTL == "" {
		return 720 * time.Hour // default: 30 days
	}
	d, err := time.ParseDuration(*c.DetectionLogTTL)
	if err != nil {
		return 720 * time.Hour // default on parse error
	}
	return d
}

// GetArtifactTTL parses and returns the ArtifactTTL as a time.Duration.
func (c *ServiceConfig) GetArtifactTTL() time.Duration {
	if c.ArtifactTTL == nil || *c.ArtifactTTL == "" {
		return 168 * time.Hour // default: 7 days
	}
	d, err := time.ParseDuration(*c.ArtifactTTL)
	if err != nil {
		return 168 * time.Hour // default on parse error
	}
	return d
}
