package catalog

const itemsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id"],
    "additionalProperties": false,
    "properties": {
      "id": {"type": "string", "pattern": "^[0-9A-Fa-f]{1,4}$"},
      "max_stack": {"type": "integer", "minimum": 0, "maximum": 65535},
      "remake": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "body_count": {"type": "integer", "minimum": 0, "maximum": 7},
          "fabric_count": {"type": "integer", "minimum": 0, "maximum": 7},
          "body_names": {"type": "array", "items": {"type": "string"}, "maxItems": 8},
          "fabric_names": {"type": "array", "items": {"type": "string"}, "maxItems": 8}
        }
      }
    }
  }
}`

const recipesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["recipe_id", "item_id"],
    "additionalProperties": false,
    "properties": {
      "recipe_id": {"type": "string", "pattern": "^[0-9A-Fa-f]{1,4}$"},
      "item_id": {"type": "string", "pattern": "^[0-9A-Fa-f]{1,4}$"}
    }
  }
}`
