package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator, reporting fields by koanf key.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks field constraints and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, describeFieldError(fe))
		}
		return errors.New(strings.Join(msgs, "; "))
	}

	if c.Storage.Backend == "mongo" && c.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required when storage.backend is mongo")
	}

	if c.Explain.Provider == "vertex" && c.Explain.Project == "" {
		return fmt.Errorf("explain.project is required when explain.provider is vertex")
	}

	if c.Index.SnapshotBackend == "sqlite" && c.Storage.Backend != "sqlite" {
		return fmt.Errorf("index.snapshot_backend sqlite requires storage.backend sqlite")
	}

	if w := c.Search.SimilarityWeight + c.Search.PersonalizationWeight; w <= 0 {
		return fmt.Errorf("search weights must not both be zero")
	}

	return nil
}

// describeFieldError renders a validator error with its dotted config key.
func describeFieldError(fe validator.FieldError) string {
	key := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", key, fe.Param(), fe.Value())
	case "gt", "gte", "lt", "lte", "min":
		return fmt.Sprintf("%s fails %s=%s, got %v", key, fe.Tag(), fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL, got %v", key, fe.Value())
	default:
		return fmt.Sprintf("%s is invalid (%s)", key, fe.Tag())
	}
}
