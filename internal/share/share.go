package share

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrPackageNotFound = errors.New("package not found")

// Index resolves package share directories across install prefixes.
// Earlier prefixes shadow later ones, matching overlay semantics.
type Index struct {
	prefixes []string
}

func NewIndex(prefixes []string) *Index {
	var clean []string
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	return &Index{prefixes: clean}
}

// Dir returns <prefix>/share/<pkg> for the first prefix that contains it.
func (i *Index) Dir(pkg string) (string, error) {
	if pkg == "" {
		return "", fmt.Errorf("share dir: empty package name")
	}
	for _, prefix := range i.prefixes {
		dir := filepath.Join(prefix, "share", pkg)
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrPackageNotFound, pkg)
}

// Path joins elems under the package's share directory.
func (i *Index) Path(pkg string, elems ...string) (string, error) {
	dir, err := i.Dir(pkg)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elems...)...), nil
}
