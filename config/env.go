package config

import (
	"strings"
	"unicode"
)

// envKeys maps the flattened env form of every YAML path to its dotted camelCase path,
// e.g. "postgres_master_username" -> "postgres.master.userName".
type envKeys map[string]string

func envKeyIndex(tree map[string]any) envKeys {
	idx := envKeys{}
	idx.walk(tree, "", "")

	return idx
}

func (idx envKeys) walk(tree map[string]any, envPrefix, pathPrefix string) {
	for key, value := range tree {
		envKey, path := flatten(key), key
		if envPrefix != "" {
			envKey = envPrefix + "_" + envKey
			path = pathPrefix + "." + key
		}
		idx[envKey] = path

		if child, ok := value.(map[string]any); ok {
			idx.walk(child, envKey, path)
		}
	}
}

// resolve turns SYNC_STEPTIMEOUT into sync.stepTimeout. The longest known prefix keeps
// its YAML casing; the unknown remainder is lowercased and split on underscores.
func (idx envKeys) resolve(envVar string) string {
	key := strings.ToLower(strings.Trim(envVar, "_"))
	if path, ok := idx[key]; ok {
		return path
	}

	for cut := strings.LastIndexByte(key, '_'); cut > 0; cut = strings.LastIndexByte(key[:cut], '_') {
		if path, ok := idx[key[:cut]]; ok {
			return path + "." + strings.ReplaceAll(key[cut+1:], "_", ".")
		}
	}

	return strings.ReplaceAll(key, "_", ".")
}

func flatten(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}

	return b.String()
}
