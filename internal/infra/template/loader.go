package template

import (
	"fmt"

	"notifyhub/internal/domain/notification"

	"github.com/spf13/viper"
)

// LoadFile reads template definitions from a YAML or JSON file with a
// top-level "templates" list.
func LoadFile(path string) ([]notification.Template, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading template file %s: %w", path, err)
	}

	var doc struct {
		Templates []notification.Template `mapstructure:"templates"`
	}
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("decoding template file %s: %w", path, err)
	}
	return doc.Templates, nil
}
