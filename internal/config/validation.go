package config

import (
	"fmt"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	return newConfigurationValidator(cfg).validate()
}

type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateStore(); err != nil {
		return err
	}
	if err := cv.validateVersions(); err != nil {
		return err
	}
	return cv.validateLinkedArtifacts()
}

func (cv *configurationValidator) validateStore() error {
	s := cv.config.Store
	switch s.Type {
	case StoreTypeFS:
		if s.Root == "" {
			return errors.ConfigError("store.root is required for fs stores").Build()
		}
	case StoreTypeGCS:
		if s.Bucket == "" {
			return errors.ConfigError("store.bucket is required for gcs stores").Build()
		}
		if s.Watch {
			return errors.ConfigError("store.watch is only supported for fs stores").Build()
		}
	default:
		return errors.ConfigError(fmt.Sprintf("unsupported store type: %s", s.Type)).Build()
	}
	if s.Retry.Initial > s.Retry.Max {
		return errors.ConfigError("store.retry.initial must not exceed store.retry.max").Build()
	}
	return nil
}

func (cv *configurationValidator) validateVersions() error {
	v := cv.config.Versions
	for _, p := range v.CandidatePaths {
		if p == "" {
			return errors.ConfigError("versions.candidate_paths must not contain empty entries").Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateLinkedArtifacts() error {
	for i, a := range cv.config.LinkedArtifacts {
		if a.URL == "" {
			return errors.ConfigError(fmt.Sprintf("linked_artifacts[%d].url is required", i)).Build()
		}
		if a.User == "" {
			return errors.ConfigError(fmt.Sprintf("linked_artifacts[%d].user is required", i)).Build()
		}
	}
	return nil
}
