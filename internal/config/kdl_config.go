package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from a .codeatlas.kdl file in the
// project root. Returns (nil, nil) when no config file exists.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".codeatlas.kdl")

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .codeatlas.kdl: %v", err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	// Resolve a relative root against the directory holding the config file
	if cfg.Project.Root != "" && !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
	}
	if cfg.Project.Root == "" {
		if absRoot, err := filepath.Abs(projectRoot); err == nil {
			cfg.Project.Root = absRoot
		} else {
			cfg.Project.Root = projectRoot
		}
	}

	return cfg, nil
}

func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Cache.Enabled = b
					}
				case "max_entries":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.MaxEntries = v
					}
				case "ttl_minutes":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.TTL = time.Duration(v) * time.Minute
					}
				case "persist":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Cache.Persist = b
					}
				case "dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Cache.Dir = s
					}
				case "compression_threshold":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.CompressionThreshold = v
					}
				}
			}
		case "analysis":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Analysis.MaxFileSize = int64(v)
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Analysis.FollowSymlinks = b
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Analysis.RespectGitignore = b
					}
				case "symbol_table":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Analysis.BuildSymbolTable = b
					}
				case "graph":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Analysis.BuildGraph = b
					}
				case "patterns":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Analysis.DetectPatterns = b
					}
				case "incremental":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Analysis.Incremental = b
					}
				case "watch_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Analysis.WatchMode = b
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Analysis.WatchDebounceMs = v
					}
				case "max_tree_depth":
					if v, ok := firstIntArg(cn); ok {
						cfg.Analysis.MaxTreeDepth = v
					}
				}
			}
		case "patterns":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "large_class_members":
					if v, ok := firstIntArg(cn); ok {
						cfg.Patterns.LargeClassMembers = v
					}
				case "long_method_lines":
					if v, ok := firstIntArg(cn); ok {
						cfg.Patterns.LongMethodLines = v
					}
				case "long_parameter_list":
					if v, ok := firstIntArg(cn); ok {
						cfg.Patterns.LongParameterList = v
					}
				case "deep_nesting_levels":
					if v, ok := firstIntArg(cn); ok {
						cfg.Patterns.DeepNestingLevels = v
					}
				case "god_object_fan_out":
					if v, ok := firstIntArg(cn); ok {
						cfg.Patterns.GodObjectFanOut = v
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_concurrency":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.MaxConcurrency = v
					}
				case "batch_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.BatchSize = v
					}
				}
			}
		case "include":
			cfg.Include = collectStringArgs(n)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		}
	}

	return cfg, nil
}

// Helper functions leveraging the kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block format: exclude { "pattern" } puts strings in child node names
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
