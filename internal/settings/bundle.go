package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/spigell/liqa/internal/storage"
)

// BundleVersion is the current export format.
const BundleVersion = 1

// Bundle is a full copy of both tiers, used to move a configuration between
// machines.
type Bundle struct {
	Version int            `json:"version"`
	Sync    map[string]any `json:"sync"`
	Local   map[string]any `json:"local"`
}

const bundleSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "sync", "local"],
  "properties": {
    "version": {"const": 1},
    "sync": {
      "type": "object",
      "propertyNames": {"pattern": "^liqa-"},
      "properties": {
        "liqa-selectors-v1": {
          "type": "object",
          "properties": {
            "next": {"type": "string"},
            "prev": {"type": "string"},
            "save": {"type": "string"},
            "hide": {"type": "string"}
          },
          "additionalProperties": false
        },
        "liqa-settings-v1": {
          "type": "object",
          "properties": {
            "hotkeysEnabled": {"type": "boolean"},
            "legendEnabled": {"type": "boolean"}
          }
        }
      }
    },
    "local": {
      "type": "object",
      "propertyNames": {"pattern": "^liqa-"},
      "properties": {
        "liqa-ai-config-v1": {
          "type": "object",
          "properties": {
            "apiKey": {"type": "string"},
            "model": {"type": "string"},
            "autoScan": {"type": "boolean"},
            "impactProfile": {"type": "string"},
            "systemPrompt": {"type": "string"}
          }
        },
        "liqa-jobs-index-v1": {"$ref": "#/definitions/index"},
        "liqa-agents-index-v1": {"$ref": "#/definitions/index"},
        "liqa-last-job-index": {"type": "integer", "minimum": 0},
        "liqa-default-agent": {"type": ["string", "null"]}
      },
      "patternProperties": {
        "^liqa-job-": {
          "type": "object",
          "required": ["id", "name", "text"],
          "properties": {
            "id": {"type": "string"},
            "name": {"type": "string", "minLength": 1},
            "text": {"type": "string", "minLength": 1},
            "impactProfile": {"type": "string"}
          }
        },
        "^liqa-agent-": {
          "type": "object",
          "required": ["id", "name", "prompt"],
          "properties": {
            "id": {"type": "string"},
            "name": {"type": "string", "minLength": 1},
            "prompt": {"type": "string", "minLength": 1}
          }
        }
      }
    }
  },
  "definitions": {
    "index": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"}
        }
      }
    }
  }
}`

var bundleLoader = gojsonschema.NewStringLoader(bundleSchema)

// Export copies every stored value. Without secrets the API key is dropped.
func (r *Repository) Export(ctx context.Context, withSecrets bool) (Bundle, error) {
	syncValues, err := r.store.Sync.Get(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("reading sync tier: %w", err)
	}

	localValues, err := r.store.Local.Get(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("reading local tier: %w", err)
	}

	if !withSecrets {
		if cfg, ok := localValues[KeyAIConfig].(map[string]any); ok {
			redacted := make(map[string]any, len(cfg))
			for k, v := range cfg {
				if k != "apiKey" {
					redacted[k] = v
				}
			}
			localValues[KeyAIConfig] = redacted
		}
	}

	return Bundle{Version: BundleVersion, Sync: syncValues, Local: localValues}, nil
}

// ParseBundle validates data against the bundle schema and decodes it.
func ParseBundle(data []byte) (Bundle, error) {
	result, err := gojsonschema.Validate(bundleLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return Bundle{}, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return Bundle{}, fmt.Errorf("decoding bundle: %w", err)
	}
	return b, nil
}

// Import writes every value of b, sync tier first. Keys missing from b are
// left untouched.
func (r *Repository) Import(ctx context.Context, b Bundle) error {
	tiers := []struct {
		store  storage.Store
		values map[string]any
	}{
		{r.store.Sync, b.Sync},
		{r.store.Local, b.Local},
	}

	for _, tier := range tiers {
		for _, key := range storage.SortedKeys(tier.values) {
			if err := tier.store.Set(ctx, key, tier.values[key]); err != nil {
				return fmt.Errorf("importing %s: %w", key, err)
			}
		}
	}
	return nil
}
