package forge

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/louisbranch/espritforge/internal/platform/errors"
)

// maxExactInt is the largest integer a float64 JSON number holds exactly.
const maxExactInt = 1 << 53

// request reads typed fields from a Struct. Missing and null fields read as
// zero values. The first field of the wrong kind sets err and later reads
// return zero values.
type request struct {
	fields map[string]*structpb.Value
	err    error
}

func newRequest(in *structpb.Struct) *request {
	return &request{fields: in.GetFields()}
}

func invalidField(field, format string, args ...any) error {
	return apperrors.WithMetadata(apperrors.CodeRequestInvalid,
		fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...)),
		map[string]string{"Field": field})
}

func (r *request) fail(field, format string, args ...any) {
	if r.err == nil {
		r.err = invalidField(field, format, args...)
	}
}

func (r *request) value(name string) (*structpb.Value, bool) {
	if r.err != nil {
		return nil, false
	}
	v, ok := r.fields[name]
	if !ok || v == nil {
		return nil, false
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return nil, false
	}
	return v, true
}

func (r *request) str(name string) string {
	v, ok := r.value(name)
	if !ok {
		return ""
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		r.fail(name, "must be a string")
		return ""
	}
	return strings.TrimSpace(s.StringValue)
}

func (r *request) boolean(name string) bool {
	v, ok := r.value(name)
	if !ok {
		return false
	}
	b, isBool := v.GetKind().(*structpb.Value_BoolValue)
	if !isBool {
		r.fail(name, "must be a boolean")
		return false
	}
	return b.BoolValue
}

func (r *request) float(name string) float64 {
	v, ok := r.value(name)
	if !ok {
		return 0
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber {
		r.fail(name, "must be a number")
		return 0
	}
	return n.NumberValue
}

// int64Value accepts whole JSON numbers within float64's exact range, or a
// decimal string for the full int64 range. ok is false when the field is
// absent.
func (r *request) int64Value(name string) (n int64, ok bool) {
	v, present := r.value(name)
	if !present {
		return 0, false
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := kind.NumberValue
		if math.IsNaN(f) || math.Trunc(f) != f || math.Abs(f) > maxExactInt {
			r.fail(name, "must be a whole number")
			return 0, false
		}
		return int64(f), true
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(strings.TrimSpace(kind.StringValue), 10, 64)
		if err != nil {
			r.fail(name, "must be an integer")
			return 0, false
		}
		return n, true
	default:
		r.fail(name, "must be an integer")
		return 0, false
	}
}

func (r *request) intValue(name string) int {
	n, _ := r.int64Value(name)
	if n > math.MaxInt32 || n < math.MinInt32 {
		r.fail(name, "out of range")
		return 0
	}
	return int(n)
}

// optionalInt64 returns nil when name is absent.
func (r *request) optionalInt64(name string) *int64 {
	n, ok := r.int64Value(name)
	if !ok {
		return nil
	}
	return &n
}
