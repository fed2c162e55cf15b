package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags toggles optional API surface at startup.
// Values come from defaults, then the "features" section of the config
// file, then FEATURE_* environment variables.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature is a single toggle.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	FeatureStudentList   = "api.student_list"   // GET /students, GET /students/count
	FeatureBulkDelete    = "api.bulk_delete"    // DELETE /students
	FeatureAddMark       = "api.add_mark"       // POST /student/{id}/marks
	FeatureRating        = "api.rating"         // GET /student/{id}/rating
	FeatureEventLogging  = "events.logging"     // log every domain event
	FeatureCacheStudents = "cache.student_read" // Redis read-through for FindByID
)

// LoadFeatureFlags builds the flag set from defaults, overrides and env.
func LoadFeatureFlags(overrides map[string]bool) *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()

	for name, enabled := range overrides {
		if f, ok := ff.features[name]; ok {
			f.Enabled = enabled
		}
	}

	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	defaults := []Feature{
		{Name: FeatureStudentList, Description: "List and count students", Enabled: true},
		{Name: FeatureBulkDelete, Description: "Delete every student in one call", Enabled: true},
		{Name: FeatureAddMark, Description: "Append a single mark", Enabled: true},
		{Name: FeatureRating, Description: "Rating for the sum of marks", Enabled: true},
		{Name: FeatureEventLogging, Description: "Log domain events", Enabled: true},
		{Name: FeatureCacheStudents, Description: "Cache single-student reads in Redis", Enabled: true},
	}
	for i := range defaults {
		f := defaults[i]
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment applies FEATURE_<NAME>=true|false.
// Example: FEATURE_API_BULK_DELETE=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
		}
	}
}

// "api.bulk_delete" -> "FEATURE_API_BULK_DELETE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether a feature is on. Unknown features are off.
// A nil receiver enables everything.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	if ff == nil {
		return true
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	return ok && f.Enabled
}

// Set changes a flag at runtime. Returns ErrFeatureNotFound for unknown names.
func (ff *FeatureFlags) Set(name string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return ErrFeatureNotFound
	}
	f.Enabled = enabled
	return nil
}

// Enabled returns the names of all enabled features, sorted.
func (ff *FeatureFlags) Enabled() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	names := make([]string, 0, len(ff.features))
	for name, f := range ff.features {
		if f.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// --- Errors ---

var ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
