package selector

import (
	"path/filepath"
	"strings"

	"github.com/arthur-debert/strata/pkg/errors"
)

// MethodName is a selector predicate kind. The set is closed: an atom
// naming anything else fails to parse.
type MethodName string

const (
	MethodAccess       MethodName = "access"
	MethodConfig       MethodName = "config"
	MethodExposure     MethodName = "exposure"
	MethodFile         MethodName = "file"
	MethodFqn          MethodName = "fqn"
	MethodGroup        MethodName = "group"
	MethodMetric       MethodName = "metric"
	MethodPackage      MethodName = "package"
	MethodPath         MethodName = "path"
	MethodResourceType MethodName = "resource_type"
	MethodSource       MethodName = "source"
	MethodState        MethodName = "state"
	MethodTag          MethodName = "tag"
	MethodTestName     MethodName = "test_name"
	MethodTestType     MethodName = "test_type"
	MethodVersion      MethodName = "version"
)

// SelectorKeyword is the reserved method name that references another
// named selector instead of matching resources directly.
const SelectorKeyword = "selector"

var knownMethods = map[MethodName]struct{}{
	MethodAccess:       {},
	MethodConfig:       {},
	MethodExposure:     {},
	MethodFile:         {},
	MethodFqn:          {},
	MethodGroup:        {},
	MethodMetric:       {},
	MethodPackage:      {},
	MethodPath:         {},
	MethodResourceType: {},
	MethodSource:       {},
	MethodState:        {},
	MethodTag:          {},
	MethodTestName:     {},
	MethodTestType:     {},
	MethodVersion:      {},
}

// ParseMethod validates a method name against the known set
func ParseMethod(s string) (MethodName, error) {
	name := MethodName(strings.ToLower(s))
	if _, ok := knownMethods[name]; !ok {
		return "", errors.Newf(errors.ErrSelectorUnknownMethod,
			"invalid node selector method %q", s).
			WithDetail("method", s)
	}
	return name, nil
}

// DefaultMethodFor infers a method for an unqualified atom from the shape
// of its value: a path separator means path, a known source-file suffix
// means file, anything else means fqn.
func DefaultMethodFor(value string) MethodName {
	if strings.ContainsRune(value, '/') ||
		(filepath.Separator != '/' && strings.ContainsRune(value, filepath.Separator)) {
		return MethodPath
	}
	lower := strings.ToLower(value)
	if strings.HasSuffix(lower, ".sql") || strings.HasSuffix(lower, ".py") || strings.HasSuffix(lower, ".csv") {
		return MethodFile
	}
	return MethodFqn
}
