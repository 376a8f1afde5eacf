package batch

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "batchinsert/errors"
)

type cents int64

type money struct{ amount int64 }

func (m money) Value() (driver.Value, error) { return m.amount * 100, nil }

func TestEncoder_Encode(t *testing.T) {
	e := NewEncoder(nil)
	when := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"布尔真", true, "'1'"},
		{"布尔假", false, "'0'"},
		{"字符串", "hello", "'hello'"},
		{"单引号加倍", "O'Reilly", "'O''Reilly'"},
		{"nil", nil, "null"},
		{"nil指针", (*string)(nil), "null"},
		{"nil切片", []string(nil), "null"},
		{"指针解引用", strPtr("x"), "'x'"},
		{"整数", 42, "42"},
		{"负整数", int64(-7), "-7"},
		{"无符号", uint8(255), "255"},
		{"浮点", 1.5, "1.5"},
		{"时间", when, "'2024-03-09 07:05:01'"},
		{"UUID", id, "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'"},
		{"字节切片", []byte("raw'"), "'raw'''"},
		{"切片JSON", []string{"a", "b"}, `'["a","b"]'`},
		{"映射JSON", map[string]int{"n": 1}, `'{"n":1}'`},
		{"结构体JSON", struct {
			A string `json:"a"`
		}{"it's"}, `'{"a":"it''s"}'`},
		{"Valuer", money{amount: 3}, "300"},
		{"NullString有效", sql.NullString{String: "v", Valid: true}, "'v'"},
		{"NullString无效", sql.NullString{}, "null"},
		{"命名数字类型", cents(9), "9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Encode(tc.value, "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEncoder_Errors(t *testing.T) {
	e := NewEncoder(nil)

	t.Run("JSON失败", func(t *testing.T) {
		_, err := e.Encode(map[string]any{"ch": make(chan int)}, "")
		assert.True(t, appErrors.IsEncoding(err))
	})

	t.Run("NaN", func(t *testing.T) {
		_, err := e.Encode(math.NaN(), "")
		assert.True(t, appErrors.IsEncoding(err))
	})

	t.Run("不支持的类型", func(t *testing.T) {
		_, err := e.Encode(func() {}, "")
		assert.True(t, appErrors.IsEncoding(err))
	})
}

func TestEncoder_Converter(t *testing.T) {
	var seen string
	e := NewEncoder(ValueConverterFunc(func(value any, declaredType string) (any, error) {
		seen = declaredType
		if c, ok := value.(cents); ok {
			return float64(c) / 100, nil
		}
		if _, ok := value.(int); ok {
			return "int:'" + declaredType + "'", nil
		}
		return nil, errors.New("cannot convert")
	}))

	got, err := e.Encode(cents(250), "money")
	require.NoError(t, err)
	assert.Equal(t, "2.5", got)
	assert.Equal(t, "money", seen)

	got, err = e.Encode(1, "x")
	require.NoError(t, err)
	assert.Equal(t, "'int:''x'''", got)

	// 转换器之前的规则不受影响
	got, err = e.Encode("s", "money")
	require.NoError(t, err)
	assert.Equal(t, "'s'", got)

	_, err = e.Encode(int8(1), "y")
	assert.True(t, appErrors.IsEncoding(err))
}
