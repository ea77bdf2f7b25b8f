// MCP server configuration file support.
//
// Supports the common mcpServers configuration format:
//
//	{
//	  "mcpServers": {
//	    "recipes": {
//	      "command": "python",
//	      "args": ["chef_server.py"],
//	      "env": {"RECIPE_DB": "recipes.json"}
//	    }
//	  }
//	}
package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Config represents the MCP configuration file format.
type Config struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// ServerConfig represents a single MCP server configuration.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// NamedServer pairs a server configuration with its name.
type NamedServer struct {
	Name string
	ServerConfig
}

// LoadConfig loads MCP configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	for name, server := range config.MCPServers {
		if server.Command == "" {
			return nil, fmt.Errorf("server %q has no command", name)
		}
	}

	return &config, nil
}

// Servers returns the configured servers sorted by name.
func (c *Config) Servers() []NamedServer {
	servers := make([]NamedServer, 0, len(c.MCPServers))
	for name, server := range c.MCPServers {
		servers = append(servers, NamedServer{Name: name, ServerConfig: server})
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })
	return servers
}

// ParseCommand turns a "command arg1 arg2" string into a server entry
// named after the command's base name.
func ParseCommand(line string) (NamedServer, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return NamedServer{}, fmt.Errorf("empty MCP server command")
	}
	name := fields[0]
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return NamedServer{
		Name:         name,
		ServerConfig: ServerConfig{Command: fields[0], Args: fields[1:]},
	}, nil
}
