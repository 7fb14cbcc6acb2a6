package sqlgen

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aqasim81/schema-migrator/internal/schema"
)

// ErrInvalidLiteral indicates a value that has no SQL literal form.
var ErrInvalidLiteral = errors.New("invalid literal")

// QuoteString wraps s in single quotes, doubling embedded quotes, after prefix
// (for example "N" for SQL Server unicode literals).
func QuoteString(s, prefix string) string {
	return prefix + "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatFloat renders a finite float in its shortest round-tripping form.
func FormatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidLiteral, f)
	}

	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

// UpperHex renders bytes as uppercase hexadecimal digits.
func UpperHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// TimeLayouts holds the layouts a dialect uses for each temporal kind.
type TimeLayouts struct {
	Date           string
	TimeOfDay      string
	DateTime       string
	DateTimeOffset string
}

// FormatTime formats t for the temporal kind k, defaulting to DateTime.
func (l TimeLayouts) FormatTime(t time.Time, k schema.TypeKind) string {
	switch k {
	case schema.DateType:
		return t.Format(l.Date)
	case schema.TimeOfDayType:
		return t.Format(l.TimeOfDay)
	case schema.DateTimeOffsetType:
		return t.Format(l.DateTimeOffset)
	default:
		return t.UTC().Format(l.DateTime)
	}
}

// ResolveStoreType returns the column's explicit store type, or the dialect's
// mapping of its logical type.
func ResolveStoreType(d Dialect, c *schema.Column) (string, error) {
	if c.StoreType != "" {
		return c.StoreType, nil
	}

	t, err := d.StoreType(c.Type)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", c.Name, err)
	}

	return t, nil
}

// DefaultLiteral renders the column's default, SQL expression first, or ""
// when it has none.
func DefaultLiteral(d Dialect, c *schema.Column) (string, error) {
	if c.DefaultSQL != "" {
		return c.DefaultSQL, nil
	}

	if c.DefaultValue == nil {
		return "", nil
	}

	lit, err := d.Literal(*c.DefaultValue, c.Type)
	if err != nil {
		return "", fmt.Errorf("default of column %s: %w", c.Name, err)
	}

	return lit, nil
}

// UnmappedType is returned by StoreType implementations for kinds they cannot map.
func UnmappedType(dialect string, t schema.ColumnType) error {
	return fmt.Errorf("%w: %s has no mapping for %s", schema.ErrInvalidType, dialect, t)
}
