package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ProjectConfig is the stack selection and project metadata submitted for
// generation. It is immutable once a task has been created for it.
type ProjectConfig struct {
	Framework          string `json:"framework"           validate:"required"`
	TaskType           string `json:"task_type"           validate:"required"`
	ExperimentTracking string `json:"experiment_tracking" validate:"required"`
	Orchestration      string `json:"orchestration"       validate:"required"`
	Deployment         string `json:"deployment"          validate:"required"`
	Monitoring         string `json:"monitoring"          validate:"required"`
	ProjectName        string `json:"project_name"        validate:"required"`
	AuthorName         string `json:"author_name"         validate:"required"`
	Description        string `json:"description"         validate:"required"`

	// Optional selections. They are persisted with the task but only reach
	// the generator when extended option forwarding is enabled.
	CloudProvider string `json:"cloud_provider,omitempty"`
	CloudService  string `json:"cloud_service,omitempty"`
	Preset        string `json:"preset,omitempty"`
	Template      string `json:"template,omitempty"`
	Analytics     bool   `json:"analytics,omitempty"`
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their wire names so clients can map them back to the form.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalized returns a copy with surrounding whitespace trimmed from every
// text field, so that blank values count as missing.
func (c ProjectConfig) Normalized() ProjectConfig {
	c.Framework = strings.TrimSpace(c.Framework)
	c.TaskType = strings.TrimSpace(c.TaskType)
	c.ExperimentTracking = strings.TrimSpace(c.ExperimentTracking)
	c.Orchestration = strings.TrimSpace(c.Orchestration)
	c.Deployment = strings.TrimSpace(c.Deployment)
	c.Monitoring = strings.TrimSpace(c.Monitoring)
	c.ProjectName = strings.TrimSpace(c.ProjectName)
	c.AuthorName = strings.TrimSpace(c.AuthorName)
	c.Description = strings.TrimSpace(c.Description)
	c.CloudProvider = strings.TrimSpace(c.CloudProvider)
	c.CloudService = strings.TrimSpace(c.CloudService)
	c.Preset = strings.TrimSpace(c.Preset)
	c.Template = strings.TrimSpace(c.Template)
	return c
}

// Validate checks that every required field is present.
// It returns a *MissingFieldsError naming all missing fields at once.
func (c ProjectConfig) Validate() error {
	err := configValidator.Struct(c.Normalized())
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return &MissingFieldsError{Fields: missing}
}
