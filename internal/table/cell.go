package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CellString renders a cell the way it reads in the sheet: integral numbers
// without a decimal point, everything else in its shortest form.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Key normalizes an identifier cell so that 2, 2.0 and "2" compare equal.
func Key(v any) string {
	s := strings.TrimSpace(CellString(v))
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}
