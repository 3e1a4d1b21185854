package builder

import (
	"runtime"
	"sort"
	"strings"
)

// EnvFromMap renders a map as KEY=VALUE entries sorted by key.
func EnvFromMap(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env
}

// MergeEnv returns base with overrides applied in order. An override replaces
// the base entry of the same name in place and new names are appended.
// Entries without "=" are dropped. base is not modified.
func MergeEnv(base []string, overrides ...string) []string {
	merged, _ := mergeEnv(base, overrides)
	return merged
}

// mergeEnv also reports which names in overrides replaced an inherited value.
func mergeEnv(base, overrides []string) (merged, replaced []string) {
	merged = append([]string(nil), base...)
	index := make(map[string]int, len(merged))
	for i, kv := range merged {
		if name, _, ok := strings.Cut(kv, "="); ok && name != "" {
			index[envName(name)] = i
		}
	}

	for _, kv := range overrides {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		key := envName(name)
		if i, found := index[key]; found {
			if i < len(base) {
				replaced = append(replaced, name)
			}
			merged[i] = kv
			continue
		}
		index[key] = len(merged)
		merged = append(merged, kv)
	}
	return merged, replaced
}

// envName folds case on Windows, where Path and PATH name one variable.
func envName(name string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(name)
	}
	return name
}
