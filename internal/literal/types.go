package literal

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is a normalized SQL Server system type name (lower case).
type Type string

const (
	TypeBigInt           Type = "bigint"
	TypeInt              Type = "int"
	TypeSmallInt         Type = "smallint"
	TypeTinyInt          Type = "tinyint"
	TypeBit              Type = "bit"
	TypeDecimal          Type = "decimal"
	TypeNumeric          Type = "numeric"
	TypeMoney            Type = "money"
	TypeSmallMoney       Type = "smallmoney"
	TypeFloat            Type = "float"
	TypeReal             Type = "real"
	TypeDate             Type = "date"
	TypeDateTime         Type = "datetime"
	TypeDateTime2        Type = "datetime2"
	TypeDateTimeOffset   Type = "datetimeoffset"
	TypeSmallDateTime    Type = "smalldatetime"
	TypeTime             Type = "time"
	TypeChar             Type = "char"
	TypeVarChar          Type = "varchar"
	TypeText             Type = "text"
	TypeNChar            Type = "nchar"
	TypeNVarChar         Type = "nvarchar"
	TypeNText            Type = "ntext"
	TypeBinary           Type = "binary"
	TypeVarBinary        Type = "varbinary"
	TypeImage            Type = "image"
	TypeTimestamp        Type = "timestamp"
	TypeUniqueIdentifier Type = "uniqueidentifier"
	TypeXML              Type = "xml"
	TypeSQLVariant       Type = "sql_variant"
	TypeHierarchyID      Type = "hierarchyid"
	TypeGeometry         Type = "geometry"
	TypeGeography        Type = "geography"
)

var aliases = map[string]Type{
	"sysname":    TypeNVarChar,
	"rowversion": TypeTimestamp,
	"integer":    TypeInt,
	"dec":        TypeDecimal,
	"double":     TypeFloat,
}

// ParseType normalizes a type name as reported by the catalog or by
// SQL_VARIANT_PROPERTY(..., 'BaseType').
func ParseType(name string) Type {
	n := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(n, '('); i >= 0 {
		n = strings.TrimSpace(n[:i])
	}
	if t, ok := aliases[n]; ok {
		return t
	}
	return Type(n)
}

func (t Type) String() string { return string(t) }

// IsCharacter reports whether values of t are encoded as quoted strings.
func (t Type) IsCharacter() bool {
	switch t {
	case TypeChar, TypeVarChar, TypeText, TypeNChar, TypeNVarChar, TypeNText:
		return true
	}
	return false
}

// IsWide reports whether t stores UTF-16 text and needs the N prefix.
func (t Type) IsWide() bool {
	switch t {
	case TypeNChar, TypeNVarChar, TypeNText, TypeXML:
		return true
	}
	return false
}

// IsBinary reports whether values of t are encoded as 0x hex strings.
func (t Type) IsBinary() bool {
	switch t {
	case TypeBinary, TypeVarBinary, TypeImage, TypeTimestamp,
		TypeHierarchyID, TypeGeometry, TypeGeography:
		return true
	}
	return false
}

// IsGenerated reports whether the server fills in values of t on write, so
// they are never compared or inserted.
func (t Type) IsGenerated() bool {
	return t == TypeTimestamp
}

// Declaration renders the type the way it appears in a CAST, sized with the
// precision, scale and max length reported by SQL_VARIANT_PROPERTY. maxLength
// is in bytes, as the server reports it.
func (t Type) Declaration(precision, scale, maxLength int) string {
	switch t {
	case TypeDecimal, TypeNumeric:
		return fmt.Sprintf("%s(%d,%d)", t, precision, scale)
	case TypeChar, TypeVarChar, TypeBinary, TypeVarBinary:
		return fmt.Sprintf("%s(%s)", t, length(maxLength))
	case TypeNChar, TypeNVarChar:
		if maxLength > 0 {
			maxLength /= 2
		}
		return fmt.Sprintf("%s(%s)", t, length(maxLength))
	case TypeDateTime2, TypeDateTimeOffset, TypeTime:
		return fmt.Sprintf("%s(%d)", t, scale)
	}
	return string(t)
}

func length(n int) string {
	if n <= 0 {
		return "max"
	}
	return strconv.Itoa(n)
}
