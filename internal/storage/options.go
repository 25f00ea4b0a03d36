package storage

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Options are the credential settings a table's metadata may carry.
type Options struct {
	Region         string            `mapstructure:"region"`
	KeyID          string            `mapstructure:"key_id"`
	Secret         string            `mapstructure:"secret"`
	Endpoint       string            `mapstructure:"endpoint"`
	ServiceAccount string            `mapstructure:"service_account"`
	BearerToken    string            `mapstructure:"bearer_token"`
	AuthHeaders    map[string]string `mapstructure:"auth_headers"`
}

// DecodeOptions decodes aggregated table metadata. Unknown keys are ignored;
// scalar values are converted to strings.
func DecodeOptions(meta map[string]any) (Options, error) {
	var opts Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return opts, fmt.Errorf("failed to create metadata decoder: %w", err)
	}
	if err := dec.Decode(meta); err != nil {
		return opts, fmt.Errorf("failed to decode table metadata: %w", err)
	}
	return opts, nil
}
