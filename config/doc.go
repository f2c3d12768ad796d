// Package config loads kaizen settings from YAML.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default:
//
//	session:
//	  max_artifact_size: 1048576
//	persistence:
//	  compression: zstd
//	logging:
//	  level: debug
//	  format: json
//	provider:
//	  kind: openai
//	  base_url: http://localhost:11434/v1
//	  model: llama3.1
//	  api_key_env: OPENAI_API_KEY
//	  timeout: 30s
package config
