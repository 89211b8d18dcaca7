package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "toml":
		return tomlTemplate, nil
	case "yaml", "yml":
		return yamlTemplate, nil
	default:
		return "", fmt.Errorf("unknown config format: %s", format)
	}
}

func WriteTemplate(path, format string, overwrite bool) error {
	template, err := Template(format)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const tomlTemplate = `[riak]
addr = "127.0.0.1:8087"
connect_timeout = "5s"
read_timeout = "15s"
write_timeout = "15s"

[request]
bucket = "terminals"
key = "tbk_00001"
module = "walk"
function = "request"
timeout_ms = 5000

[bridge]
id = "riakmr-bridge"
listen_addr = ":9087"
cors_origins = ["http://localhost:3000"]
token = ""

[log]
level = "info"
timestamp = true
no_color = false
file = ""
`

const yamlTemplate = `riak:
  addr: 127.0.0.1:8087
  connect_timeout: 5s
  read_timeout: 15s
  write_timeout: 15s
request:
  bucket: terminals
  key: tbk_00001
  module: walk
  function: request
  timeout_ms: 5000
bridge:
  id: riakmr-bridge
  listen_addr: ":9087"
  cors_origins:
    - http://localhost:3000
  token: ""
log:
  level: info
  timestamp: true
  no_color: false
  file: ""
`
