package batch

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"batchinsert/errors"
)

// TimeLayout 时间字面量格式
const TimeLayout = "2006-01-02 15:04:05"

// IValueConverter 将领域值转换为存储值（对应驱动的 convertToStorage）
//
// declaredType 为字段声明类型，未知时为空字符串。
type IValueConverter interface {
	ConvertToStorage(value any, declaredType string) (any, error)
}

// ValueConverterFunc 函数适配器
type ValueConverterFunc func(value any, declaredType string) (any, error)

func (f ValueConverterFunc) ConvertToStorage(value any, declaredType string) (any, error) {
	return f(value, declaredType)
}

// Encoder 把 Go 值编码为内嵌在语句中的 SQL 字面量
//
// 规则依次为：bool → '1'/'0'；字符串 → 单引号包裹并把 ' 加倍；nil → null；
// time.Time → 'YYYY-MM-DD HH:MM:SS'；uuid.UUID → 规范字符串；
// map/slice/array/struct → 紧凑 JSON 字符串；其余交给 IValueConverter、
// driver.Valuer，最后按数字输出。只转义单引号，对反斜杠敏感的方言不安全。
type Encoder struct {
	converter IValueConverter
}

// NewEncoder converter 可为 nil
func NewEncoder(converter IValueConverter) *Encoder {
	return &Encoder{converter: converter}
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	uuidType   = reflect.TypeOf(uuid.UUID{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	bytesType  = reflect.TypeOf([]byte(nil))
)

// Encode 返回 value 的 SQL 字面量
func (e *Encoder) Encode(value any, declaredType string) (string, error) {
	return e.encode(value, declaredType, e.converter)
}

func (e *Encoder) encode(value any, declaredType string, converter IValueConverter) (string, error) {
	if value == nil {
		return "null", nil
	}

	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "null", nil
		}
		// 指针本身实现 Valuer 时保留指针，交给后面的 Valuer 分支
		if v.Kind() == reflect.Ptr && v.Type().Implements(valuerType) && !v.Elem().Type().Implements(valuerType) {
			break
		}
		v = v.Elem()
	}

	switch {
	case v.Kind() == reflect.Bool:
		if v.Bool() {
			return "'1'", nil
		}
		return "'0'", nil
	case v.Kind() == reflect.String:
		return Quote(v.String()), nil
	case v.Type() == bytesType || (v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8):
		if v.IsNil() {
			return "null", nil
		}
		return Quote(string(v.Bytes())), nil
	case isNilContainer(v):
		return "null", nil
	case v.Type() == timeType:
		return Quote(v.Interface().(time.Time).Format(TimeLayout)), nil
	case v.Type() == uuidType:
		return Quote(v.Interface().(uuid.UUID).String()), nil
	case isStructured(v):
		raw, err := json.Marshal(v.Interface())
		if err != nil {
			return "", errors.NewEncodingError(err, fmt.Sprintf("encode %s as json", v.Type()))
		}
		return Quote(string(raw)), nil
	}

	if converter != nil {
		converted, err := converter.ConvertToStorage(v.Interface(), declaredType)
		if err != nil {
			return "", errors.NewEncodingError(err, fmt.Sprintf("convert %s (%s) to storage", v.Type(), declaredType))
		}
		return e.encode(converted, declaredType, nil)
	}

	if v.Type().Implements(valuerType) {
		dv, err := v.Interface().(driver.Valuer).Value()
		if err != nil {
			return "", errors.NewEncodingError(err, fmt.Sprintf("driver value of %s", v.Type()))
		}
		return e.encode(dv, declaredType, nil)
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", errors.NewEncodingError(nil, fmt.Sprintf("%v has no SQL literal", f))
		}
		bits := 64
		if v.Kind() == reflect.Float32 {
			bits = 32
		}
		return strconv.FormatFloat(f, 'f', -1, bits), nil
	default:
		return "", errors.NewEncodingError(nil, fmt.Sprintf("unsupported value type %s", v.Type()))
	}
}

// Quote 把字符串编码为单引号字面量，内部单引号加倍
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func isNilContainer(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Map, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}

// isStructured 需要 JSON 编码的复合值；实现了 driver.Valuer 的类型除外
func isStructured(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return !v.Type().Implements(valuerType) && !reflect.PointerTo(v.Type()).Implements(valuerType)
	default:
		return false
	}
}
