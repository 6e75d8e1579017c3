package handler

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Params is the per-route configuration from the config file, e.g.
// {"root": "./files"}.
type Params map[string]string

// Decode fills out, a pointer to a struct whose fields carry `param` tags.
// Strings are converted to the field types ("5" to int, "2s" to
// time.Duration, "true" to bool) and keys out does not declare are an error.
func (p Params) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "param",
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(map[string]string(p)); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
