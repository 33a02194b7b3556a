package record

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode copies rec into the struct pointed to by out, matching fields by
// their json tag. Loosely typed legacy values ("1" for true, a bare string
// for a one-element list) are coerced.
func Decode(rec Record, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("record: decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(rec)); err != nil {
		return fmt.Errorf("record: decode: %w", err)
	}
	return nil
}

// Encode flattens a tagged struct into a Record.
func Encode(in any) (Record, error) {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return nil, fmt.Errorf("record: encoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return nil, fmt.Errorf("record: encode: %w", err)
	}
	return Record(out), nil
}
