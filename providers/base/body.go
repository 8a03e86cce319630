package base

import (
	"sort"

	"github.com/tidwall/sjson"
)

// MergeExtraBody sets every ExtraBody field on the encoded request body.
// Keys are sjson paths, so nested fields ("generationConfig.topK") work.
// Fields are applied in key order so the output is deterministic.
func MergeExtraBody(body []byte, extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return body, nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error
	for _, k := range keys {
		body, err = sjson.SetBytes(body, k, extra[k])
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}
