// Package literal renders typed SQL Server values as T-SQL literals.
//
// The encoder has no hidden state: the output depends only on the value and
// the declared type, never on the server's language or the process locale.
// Two values are considered equal by the diff engine exactly when their
// literals are equal, so every branch here must be deterministic.
package literal

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/shopspring/decimal"
)

// Null is the literal written for absent values.
const Null = "NULL"

// Locale-independent layouts, one per temporal type.
const (
	layoutDate           = "2006-01-02"
	layoutDateTime       = "2006-01-02T15:04:05.000"
	layoutDateTime2      = "2006-01-02T15:04:05.0000000"
	layoutDateTimeOffset = "2006-01-02T15:04:05.0000000-07:00"
	layoutSmallDateTime  = "2006-01-02T15:04"
	layoutTime           = "15:04:05.0000000"
)

// UnsupportedTypeError is returned when a value has no literal encoding for
// its declared type. It is fatal for a script generation run.
type UnsupportedTypeError struct {
	Type  string
	Value string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("unsupported type %q", e.Type)
	}
	return fmt.Sprintf("unsupported type %q for value of Go type %s", e.Type, e.Value)
}

func unsupported(t Type, v any) error {
	e := &UnsupportedTypeError{Type: string(t)}
	if v != nil {
		e.Value = fmt.Sprintf("%T", v)
	}
	return e
}

// Variant is a sql_variant value together with the properties the server
// reports for it through SQL_VARIANT_PROPERTY.
type Variant struct {
	Value     any
	BaseType  string
	Precision int
	Scale     int
	Collation string
	MaxLength int
}

// longConcat is the byte length above which a concatenated literal starts
// from a max-typed empty string. Concatenating non-max operands truncates at
// 8000 bytes.
const longConcat = 4000

// Quote renders s as a string literal, doubling embedded quotes. Wide
// literals get the N prefix. Carriage returns and line feeds are written as
// CHAR/NCHAR pieces joined with +, so a value never spans script lines and
// cannot put a batch separator on a line of its own.
func Quote(s string, wide bool) string {
	if !strings.ContainsAny(s, "\r\n") {
		return quotePiece(s, wide)
	}
	var parts []string
	if len(s) > longConcat {
		if wide {
			parts = append(parts, "CAST(N'' AS nvarchar(max))")
		} else {
			parts = append(parts, "CAST('' AS varchar(max))")
		}
	}
	fn := "CHAR"
	if wide {
		fn = "NCHAR"
	}
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '\r' && s[i] != '\n' {
			continue
		}
		if i > start {
			parts = append(parts, quotePiece(s[start:i], wide))
		}
		parts = append(parts, fmt.Sprintf("%s(%d)", fn, s[i]))
		start = i + 1
	}
	if start < len(s) {
		parts = append(parts, quotePiece(s[start:], wide))
	}
	return strings.Join(parts, " + ")
}

func quotePiece(s string, wide bool) string {
	q := "'" + strings.ReplaceAll(s, "'", "''") + "'"
	if wide {
		return "N" + q
	}
	return q
}

// Encode renders v as a literal of the declared type t.
func Encode(v any, t Type) (string, error) {
	v, isNull, err := unwrap(v)
	if err != nil {
		return "", err
	}
	if isNull {
		return Null, nil
	}
	if vv, ok := v.(Variant); ok {
		return EncodeVariant(vv.Value, vv.BaseType, vv.Precision, vv.Scale, vv.Collation, vv.MaxLength)
	}

	var (
		s  string
		ok bool
	)
	switch t {
	case TypeBigInt, TypeInt, TypeSmallInt, TypeTinyInt:
		s, ok = encodeInteger(v)
	case TypeBit:
		s, ok = encodeBit(v)
	case TypeDecimal, TypeNumeric, TypeMoney, TypeSmallMoney:
		s, ok = encodeDecimal(v)
	case TypeFloat:
		s, ok = encodeFloat(v, 64)
	case TypeReal:
		s, ok = encodeFloat(v, 32)
	case TypeChar, TypeVarChar, TypeText, TypeNChar, TypeNVarChar, TypeNText:
		s, ok = encodeString(v, t.IsWide())
	case TypeBinary, TypeVarBinary, TypeImage, TypeTimestamp,
		TypeHierarchyID, TypeGeometry, TypeGeography:
		s, ok = encodeBinary(v)
	case TypeUniqueIdentifier:
		s, ok = encodeGUID(v)
	case TypeDate, TypeDateTime, TypeDateTime2, TypeDateTimeOffset, TypeSmallDateTime, TypeTime:
		s, ok = encodeTemporal(v, t)
	case TypeXML:
		return encodeXML(v)
	}
	if !ok {
		return "", unsupported(t, v)
	}
	return s, nil
}

// EncodeVariant renders a sql_variant value. The scalar literal for the
// runtime base type is wrapped in a double cast so that the server rebuilds
// a variant carrying the original declared type and collation.
func EncodeVariant(v any, baseType string, precision, scale int, collation string, maxLength int) (string, error) {
	v, isNull, err := unwrap(v)
	if err != nil {
		return "", err
	}
	if isNull {
		return Null, nil
	}
	bt := ParseType(baseType)
	if bt == "" || bt == TypeSQLVariant {
		return "", unsupported(TypeSQLVariant, v)
	}
	inner, err := Encode(v, bt)
	if err != nil {
		return "", err
	}
	expr := fmt.Sprintf("CAST(%s AS %s)", inner, bt.Declaration(precision, scale, maxLength))
	if collation != "" && bt.IsCharacter() {
		expr += " COLLATE " + collation
	}
	return fmt.Sprintf("CAST(%s AS sql_variant)", expr), nil
}

// unwrap strips pointers and nullable wrappers. Types with a dedicated
// encoding are returned as they are even when they implement driver.Valuer.
func unwrap(v any) (any, bool, error) {
	for {
		switch x := v.(type) {
		case nil:
			return nil, true, nil
		case Variant, time.Time, []byte, string, decimal.Decimal, uuid.UUID,
			mssql.UniqueIdentifier, mssql.DateTimeOffset, mssql.DateTime1,
			civil.Date, civil.DateTime, civil.Time:
			return v, false, nil
		case decimal.NullDecimal:
			if !x.Valid {
				return nil, true, nil
			}
			return x.Decimal, false, nil
		case uuid.NullUUID:
			if !x.Valid {
				return nil, true, nil
			}
			return x.UUID, false, nil
		case driver.Valuer:
			dv, err := x.Value()
			if err != nil {
				return nil, false, fmt.Errorf("failed to read %T: %w", v, err)
			}
			if dv == nil {
				return nil, true, nil
			}
			if reflect.TypeOf(dv) == reflect.TypeOf(v) {
				return dv, false, nil
			}
			v = dv
			continue
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer {
			return v, false, nil
		}
		if rv.IsNil() {
			return nil, true, nil
		}
		v = rv.Elem().Interface()
	}
}

func encodeInteger(v any) (string, bool) {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case []byte:
		return encodeInteger(string(x))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}

func encodeBit(v any) (string, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return "1", true
		}
		return "0", true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return "", false
		}
		return encodeBit(b)
	case []byte:
		return encodeBit(string(x))
	}
	if s, ok := encodeInteger(v); ok {
		return encodeBit(s != "0")
	}
	return "", false
}

func encodeDecimal(v any) (string, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String(), true
	case []byte:
		return encodeDecimal(string(x))
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return "", false
		}
		return d.String(), true
	case float64:
		return decimal.NewFromFloat(x).String(), true
	case float32:
		return decimal.NewFromFloat32(x).String(), true
	}
	return encodeInteger(v)
}

func encodeFloat(v any, bits int) (string, bool) {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, bits), true
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, bits), true
	case []byte:
		return encodeFloat(string(x), bits)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), bits)
		if err != nil {
			return "", false
		}
		return encodeFloat(f, bits)
	}
	return encodeInteger(v)
}

func encodeString(v any, wide bool) (string, bool) {
	switch x := v.(type) {
	case string:
		return Quote(x, wide), true
	case []byte:
		return Quote(string(x), wide), true
	case mssql.VarChar:
		return Quote(string(x), wide), true
	case mssql.VarCharMax:
		return Quote(string(x), wide), true
	case mssql.NVarCharMax:
		return Quote(string(x), wide), true
	}
	return "", false
}

func encodeBinary(v any) (string, bool) {
	var b []byte
	switch x := v.(type) {
	case []byte:
		b = x
	case string:
		b = []byte(x)
	default:
		return "", false
	}
	return "0x" + strings.ToUpper(hex.EncodeToString(b)), true
}

func encodeGUID(v any) (string, bool) {
	switch x := v.(type) {
	case mssql.UniqueIdentifier:
		return Quote(x.String(), false), true
	case uuid.UUID:
		return Quote(strings.ToUpper(x.String()), false), true
	case []byte:
		var u mssql.UniqueIdentifier
		if err := u.Scan(x); err != nil {
			return "", false
		}
		return Quote(u.String(), false), true
	case string:
		u, err := uuid.Parse(strings.TrimSpace(x))
		if err != nil {
			return "", false
		}
		return encodeGUID(u)
	}
	return "", false
}

func encodeTemporal(v any, t Type) (string, bool) {
	var tm time.Time
	switch x := v.(type) {
	case time.Time:
		tm = x
	case mssql.DateTimeOffset:
		tm = time.Time(x)
	case mssql.DateTime1:
		tm = time.Time(x)
	case civil.Date:
		tm = x.In(time.UTC)
	case civil.DateTime:
		tm = x.In(time.UTC)
	case civil.Time:
		tm = time.Date(1, time.January, 1, x.Hour, x.Minute, x.Second, x.Nanosecond, time.UTC)
	default:
		return "", false
	}

	var layout string
	switch t {
	case TypeDate:
		layout = layoutDate
	case TypeDateTime:
		layout = layoutDateTime
	case TypeDateTime2:
		layout = layoutDateTime2
	case TypeDateTimeOffset:
		layout = layoutDateTimeOffset
	case TypeSmallDateTime:
		layout = layoutSmallDateTime
	case TypeTime:
		layout = layoutTime
	}
	return Quote(tm.Format(layout), false), true
}

func encodeXML(v any) (string, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return "", unsupported(TypeXML, v)
	}
	doc, err := Indent(s)
	if err != nil {
		return "", err
	}
	return Quote(doc, true), nil
}
