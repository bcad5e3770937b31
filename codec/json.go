package codec

import (
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// JSON uses encoding/json. Snapshots written with it decode with any JSON
// tool and need nothing from this package.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return "json" }

// GoJSON uses github.com/goccy/go-json. The output is plain JSON, so JSON
// decodes it too.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string                       { return "go-json" }
